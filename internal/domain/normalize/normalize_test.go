package normalize_test

import (
	"math"
	"testing"
	"time"

	"github.com/smartinhale/adherence/internal/domain/codec"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartinhale/adherence/internal/domain/normalize"
	"github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	convey.Convey("Given raw payloads", t, func() {
		convey.Convey("An empty payload gets now and zero measurements", func() {
			e := normalize.Normalize(model.RawPayload{}, now)
			convey.So(e, convey.ShouldResemble, model.Event{TS: now.UnixMilli()})
		})

		convey.Convey("A zero timestamp is replaced by now", func() {
			e := normalize.Normalize(model.RawPayload{TS: model.Int64(0)}, now)
			convey.So(e.TS, convey.ShouldEqual, now.UnixMilli())
		})

		convey.Convey("A present timestamp is kept", func() {
			e := normalize.Normalize(model.RawPayload{TS: model.Int64(42)}, now)
			convey.So(e.TS, convey.ShouldEqual, int64(42))
		})

		convey.Convey("Strength wins over force, force is used when strength is absent", func() {
			e := normalize.Normalize(model.RawPayload{Strength: model.Float64(0.3), Force: model.Float64(0.9)}, now)
			convey.So(e.Strength, convey.ShouldEqual, 0.3)

			e = normalize.Normalize(model.RawPayload{Force: model.Float64(0.9)}, now)
			convey.So(e.Strength, convey.ShouldEqual, 0.9)
		})

		convey.Convey("A zero strength is still preferred over force", func() {
			e := normalize.Normalize(model.RawPayload{Strength: model.Float64(0), Force: model.Float64(0.9)}, now)
			convey.So(e.Strength, convey.ShouldEqual, 0)
		})

		convey.Convey("Duration wins over inhale_ms, which is converted to seconds", func() {
			e := normalize.Normalize(model.RawPayload{Duration: model.Float64(2), InhaleMS: model.Float64(1500)}, now)
			convey.So(e.Duration, convey.ShouldEqual, 2)

			e = normalize.Normalize(model.RawPayload{InhaleMS: model.Float64(1500)}, now)
			convey.So(e.Duration, convey.ShouldEqual, 1.5)
		})

		convey.Convey("Non-physical readings are clamped to zero", func() {
			e := normalize.Normalize(model.RawPayload{
				Strength: model.Float64(math.NaN()),
				Duration: model.Float64(-1),
			}, now)
			convey.So(e.Strength, convey.ShouldEqual, 0)
			convey.So(e.Duration, convey.ShouldEqual, 0)

			e = normalize.Normalize(model.RawPayload{Force: model.Float64(math.Inf(1))}, now)
			convey.So(e.Strength, convey.ShouldEqual, 0)
		})

		convey.Convey("Flags pass through", func() {
			e := normalize.Normalize(model.RawPayload{ShakeOK: true}, now)
			convey.So(e.ShakeOK, convey.ShouldBeTrue)
			convey.So(e.OrientationOK, convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given decoded JSON with alternate names", t, func() {
		raw, err := codec.Decode([]byte(`{"force":0.7,"inhale_ms":1200,"shakeOk":true,"orientationOk":true}`))
		convey.So(err, convey.ShouldBeNil)

		e := normalize.Normalize(raw, now)

		convey.So(e.TS, convey.ShouldEqual, now.UnixMilli())
		convey.So(e.Strength, convey.ShouldEqual, 0.7)
		convey.So(e.Duration, convey.ShouldEqual, 1.2)
		convey.So(e.IsCorrectTechnique(model.DefaultStrengthThreshold), convey.ShouldBeTrue)
	})
}
