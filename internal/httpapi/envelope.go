package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"snakearena/internal/apperr"
)

// Envelope is the wire format pinned by spec.md §6: {code, msg, data}.
// code=0 means success; a non-zero code in [400,599] mirrors the HTTP
// status, and anything else is treated as 500.
type Envelope struct {
	Code int `json:"code"`
	Msg  string `json:"msg"`
	Data any `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Msg: "ok", Data: data})
}

// fail translates err into the envelope and an HTTP status matching the
// error's code, per spec.md §7. Any error that isn't already an *apperr.Error
// is treated as Internal.
func fail(c *gin.Context, err error) {
	ae, _ := apperr.As(err)
	body := Envelope{Code: ae.Code, Msg: ae.Message}
	if ae.Kind == apperr.KindRateLimited || ae.Kind == apperr.KindDuplicateCommand {
		c.Header("Retry-After", strconv.Itoa(ae.RetryAfterS))
		body.Data = gin.H{"retry_after_seconds": ae.RetryAfterS}
	}
	c.JSON(ae.Code, body)
}
