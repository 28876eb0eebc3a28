package api

import (
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	convey.Convey("Given API errors", t, func() {
		cause := errors.New("unexpected EOF")

		convey.Convey("WrapKind matches both kind and cause", func() {
			err := WrapKind("api.post_event", ErrBadRequest, cause)
			convey.So(errors.Is(err, ErrBadRequest), convey.ShouldBeTrue)
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "api.post_event: bad request: unexpected EOF")
		})

		convey.Convey("NewKind carries only the kind", func() {
			err := NewKind("api.post_payload", ErrBackpressure)
			convey.So(errors.Is(err, ErrBackpressure), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "api.post_payload: backpressure")
		})

		convey.Convey("Wrap keeps nil as nil", func() {
			convey.So(Wrap("api.x", nil), convey.ShouldBeNil)
			convey.So(Wrap("api.x", cause).Error(), convey.ShouldEqual, "api.x: unexpected EOF")
		})

		convey.Convey("errorType buckets status codes", func() {
			convey.So(errorType(500), convey.ShouldEqual, "server_error")
			convey.So(errorType(429), convey.ShouldEqual, "rate_limit")
			convey.So(errorType(404), convey.ShouldEqual, "not_found")
			convey.So(errorType(400), convey.ShouldEqual, "client_error")
		})
	})
}
