package resource

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/railops/fleetcrisis/emergency"
	"github.com/yarf-framework/yarf"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

type resource struct {
	yarf.Resource
	handler *emergency.Handler
}

func (r *resource) DecodeRequest(c *yarf.Context, v interface{}) error {
	contentType := c.Request.Header.Get("Content-Type")
	var err error
	switch {
	case strings.Contains(contentType, "msgpack"):
		err = msgpack.NewDecoder(c.Request.Body).Decode(v)
	default:
		err = json.NewDecoder(c.Request.Body).Decode(v)
	}

	if err != nil {
		return &yarf.CustomError{
			HTTPCode:  http.StatusBadRequest,
			ErrorMsg:  "Failed to decode request",
			ErrorBody: err.Error(),
		}
	}
	return nil
}

// translateError turns errors of the emergency operations into HTTP errors
func translateError(err error) error {
	if err == nil {
		return nil
	}
	code := http.StatusInternalServerError
	switch {
	case emergency.IsNotFound(err):
		code = http.StatusNotFound
	case emergency.IsInvalidState(err):
		code = http.StatusConflict
	case emergency.IsValidation(err):
		code = http.StatusBadRequest
	case emergency.IsDependencyFailure(err):
		code = http.StatusServiceUnavailable
	}
	return &yarf.CustomError{
		HTTPCode:  code,
		ErrorMsg:  http.StatusText(code),
		ErrorBody: err.Error(),
	}
}

// RenderData takes a interface{} object and writes the encoded representation of it.
// Encoding used will be idented JSON, non-idented JSON, Msgpack or XML
func RenderData(c *yarf.Context, data interface{}) {
	accept := c.Request.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "json"):
		c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.RenderJSON(data)
	case strings.Contains(accept, "xml") && !strings.Contains(accept, "xhtml"):
		c.Response.Header().Set("Content-Type", "application/xml; charset=utf-8")
		c.RenderXML(data)
	case strings.Contains(accept, "msgpack"):
		RenderMsgpack(c, data)
	default:
		c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.RenderJSONIndent(data)
	}
}

// RenderMsgpack takes a interface{} object and writes the Msgpack encoded string of it.
func RenderMsgpack(c *yarf.Context, data interface{}) {
	c.Response.Header().Set("Content-Type", "application/msgpack")
	encoded, err := msgpack.Marshal(data)
	if err != nil {
		log.Println(err)
		c.Response.Write([]byte(err.Error()))
	} else {
		c.Response.Write(encoded)
	}
}
