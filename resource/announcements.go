package resource

import (
	"net/http"

	"github.com/railops/fleetcrisis/notify"
	"github.com/yarf-framework/yarf"
)

// Announcements composites resource
type Announcements struct {
	resource
	feed *notify.FeedBackend
}

// WithFeed associates a feed backend with this resource
func (r *Announcements) WithFeed(feed *notify.FeedBackend) *Announcements {
	r.feed = feed
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Announcements) Get(c *yarf.Context) error {
	atom, err := r.feed.Atom()
	if err != nil {
		return &yarf.CustomError{
			HTTPCode:  http.StatusInternalServerError,
			ErrorMsg:  "Error generating feed",
			ErrorBody: err.Error(),
		}
	}
	c.Response.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	c.Response.Write([]byte(atom))
	return nil
}
