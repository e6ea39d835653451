package interceptor

import (
	"errors"
	"net/http"

	"pwashop/utils"

	"github.com/gin-gonic/gin"
)

// Handler serves every route the edge does not own itself.
func (i *Interceptor) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := i.Fetch(c.Request.Context(), c.Request)
		if err != nil {
			if errors.Is(err, ErrNetworkFailure) {
				utils.JSONError(c, http.StatusGatewayTimeout, ErrNetworkFailure.Error(), err.Error())
				return
			}
			utils.JSONError(c, http.StatusBadGateway, "Request failed", err.Error())
			return
		}

		header := c.Writer.Header()
		for name, values := range resp.Header {
			for _, v := range values {
				header.Add(name, v)
			}
		}
		header.Del("Content-Length")
		header.Set("X-Cache-Source", string(resp.Source))
		c.Data(resp.Status, resp.Header.Get("Content-Type"), resp.Body)
	}
}
