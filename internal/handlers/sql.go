package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/bwservicing/certtrack/api/v1"
)

// ExecuteSQL runs one statement of the restricted SQL dialect. Anything
// outside it is answered with 400 and the name of the rejected construct.
// (POST /sql)
func (h *Handler) ExecuteSQL(c *gin.Context) {
	var body v1.SQLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		h.badRequest(c, err)
		return
	}

	rows, err := h.sqlSrv.Execute(c.Request.Context(), body.Sql, body.Params)
	if err != nil {
		h.writeError(c, "failed to execute statement", err)
		return
	}
	c.JSON(http.StatusOK, v1.SQLResponse{Rows: v1.NewRecords(rows)})
}
