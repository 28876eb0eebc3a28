package model_test

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/smartinhale/adherence/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEventTechnique(t *testing.T) {
	convey.Convey("Given events around the strength threshold", t, func() {
		good := model.Event{Strength: 0.8, Duration: 1.2, ShakeOK: true, OrientationOK: true}

		convey.Convey("A shaken, upright, strong inhalation is correct", func() {
			convey.So(good.IsCorrectTechnique(model.DefaultStrengthThreshold), convey.ShouldBeTrue)
			convey.So(good.Label(model.DefaultStrengthThreshold), convey.ShouldEqual, model.LabelCorrect)
		})

		convey.Convey("Strength exactly at the threshold is not correct", func() {
			e := good
			e.Strength = 0.5
			convey.So(e.IsCorrectTechnique(0.5), convey.ShouldBeFalse)
			convey.So(e.Label(0.5), convey.ShouldEqual, model.LabelImproper)
		})

		convey.Convey("A missing flag makes it improper", func() {
			e := good
			e.ShakeOK = false
			convey.So(e.IsCorrectTechnique(0.5), convey.ShouldBeFalse)
			e = good
			e.OrientationOK = false
			convey.So(e.IsCorrectTechnique(0.5), convey.ShouldBeFalse)
		})

		convey.Convey("The threshold is configurable", func() {
			convey.So(good.IsCorrectTechnique(0.9), convey.ShouldBeFalse)
		})
	})
}

func TestEventJSON(t *testing.T) {
	convey.Convey("Given an event", t, func() {
		e := model.Event{TS: 1700000000000, Strength: 0.7, Duration: 1.5, ShakeOK: true}

		convey.Convey("It serializes with the canonical field names", func() {
			b, err := json.Marshal(e)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual,
				`{"ts":1700000000000,"strength":0.7,"duration":1.5,"shakeOk":true,"orientationOk":false}`)
		})

		convey.Convey("Time converts milliseconds in the given location", func() {
			convey.So(e.Time(time.UTC).Equal(time.UnixMilli(1700000000000)), convey.ShouldBeTrue)
			convey.So(e.Time(time.UTC).Location(), convey.ShouldEqual, time.UTC)
		})
	})
}

func TestEnvelopes(t *testing.T) {
	convey.Convey("Given envelope constructors", t, func() {
		now := time.Now()

		convey.Convey("Payload envelopes carry bytes and a fresh id", func() {
			a := model.NewPayloadEnvelope("http", []byte("x"), now)
			b := model.NewPayloadEnvelope("http", []byte("x"), now)
			convey.So(a.ID, convey.ShouldNotEqual, b.ID)
			convey.So(a.Synthetic, convey.ShouldBeNil)
			convey.So(a.ReceivedAt, convey.ShouldEqual, now)
		})

		convey.Convey("Synthetic envelopes are tagged synthetic", func() {
			env := model.NewSyntheticEnvelope("api", model.RawPayload{Strength: model.Float64(0.8)}, now)
			convey.So(env.Data, convey.ShouldBeNil)
			convey.So(env.Synthetic.Format, convey.ShouldEqual, model.FormatSynthetic)
			convey.So(*env.Synthetic.Strength, convey.ShouldEqual, 0.8)
		})
	})
}
