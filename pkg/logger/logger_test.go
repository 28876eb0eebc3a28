package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("yaml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat(FormatJSON), WithOutput(&buf)), ShouldBeNil)

		Convey("When a named logger writes a record with fields", func() {
			Named("worker").Info(context.Background(), "event ingested",
				String("origin", "ws"), Int("count", 3), Bool("correct", true), Error(errors.New("boom")))

			var rec map[string]any
			So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)

			Convey("Then the record carries component, fields and caller", func() {
				So(rec["msg"], ShouldEqual, "event ingested")
				So(rec["component"], ShouldEqual, "worker")
				So(rec["count"], ShouldEqual, float64(3))
				So(rec["origin"], ShouldEqual, "ws")
				So(rec["correct"], ShouldEqual, true)
				So(rec["error"], ShouldEqual, "boom")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a text logger at info", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)

		Convey("Debug records are filtered until the level is lowered", func() {
			Get().Debug(context.Background(), "hidden")
			So(buf.Len(), ShouldEqual, 0)

			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(context.Background(), "visible")
			So(strings.Contains(buf.String(), "visible"), ShouldBeTrue)
			So(strings.Contains(buf.String(), "logger_test.go"), ShouldBeTrue)
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
			So(SetLevelString("warning"), ShouldBeNil)
			So(SetLevelString(""), ShouldBeNil)
		})
	})
}
