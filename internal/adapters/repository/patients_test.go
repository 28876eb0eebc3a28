package repository

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/smartinhale/adherence/internal/adapters/blob"
	"github.com/smartinhale/adherence/internal/domain/model"
)

func TestPatientRegistry(t *testing.T) {
	Convey("Given a registry seeded with a default patient", t, func() {
		ctx := context.Background()
		seed := model.Patient{ID: "p1", Name: "Default Patient", DeviceID: "device-001"}
		b := blob.NewMemory()
		r := NewPatientRegistry(b, seed)

		Convey("Loading with nothing persisted keeps the seed", func() {
			So(r.Load(ctx), ShouldBeNil)
			So(r.List(), ShouldResemble, []model.Patient{seed})
		})

		Convey("Added patients get an id and are persisted", func() {
			p, err := r.Add(ctx, " Sam ", "device-002")
			So(err, ShouldBeNil)
			So(p.ID, ShouldNotBeEmpty)
			So(p.Name, ShouldEqual, "Sam")
			So(r.List(), ShouldHaveLength, 2)

			restored := NewPatientRegistry(b, seed)
			So(restored.Load(ctx), ShouldBeNil)
			So(restored.List(), ShouldResemble, r.List())
		})

		Convey("Blank fields are rejected", func() {
			_, err := r.Add(ctx, "", "device-002")
			So(errors.Is(err, ErrInvalidPatient), ShouldBeTrue)
			_, err = r.Add(ctx, "Sam", "  ")
			So(errors.Is(err, ErrInvalidPatient), ShouldBeTrue)
			So(r.List(), ShouldHaveLength, 1)
		})

		Convey("List returns a copy", func() {
			list := r.List()
			list[0].Name = "changed"
			So(r.List()[0].Name, ShouldEqual, "Default Patient")
		})

		Convey("A persisted empty list keeps the seed", func() {
			So(b.Save(ctx, PatientsKey, []byte(`[]`)), ShouldBeNil)
			So(r.Load(ctx), ShouldBeNil)
			So(r.List(), ShouldResemble, []model.Patient{seed})
		})
	})
}
