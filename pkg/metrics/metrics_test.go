package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "smartinhale")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.storeSize.Set(7)

			Convey("Then collectors use the custom names and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_store_events" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "smartinhale")
				So(manager.subsystem, ShouldEqual, "adherence")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("Pipeline counters increase", func() {
			before := testutil.ToFloat64(globalManager.payloadsReceived.WithLabelValues("http"))
			RecordPayloadReceived("http")
			RecordPayloadReceived("http")
			So(testutil.ToFloat64(globalManager.payloadsReceived.WithLabelValues("http")), ShouldEqual, before+2)

			RecordDecodeFailure("undecodable")
			RecordEventIngested("json")
			RecordIngestLatency(1.5)
			RecordEventsCleared()
		})

		Convey("Error connection states collapse to one label", func() {
			before := testutil.ToFloat64(globalManager.connectionStates.WithLabelValues("error"))
			RecordConnectionState("error:GATT server disconnected")
			RecordConnectionState("error:timeout")
			So(testutil.ToFloat64(globalManager.connectionStates.WithLabelValues("error")), ShouldEqual, before+2)
		})

		Convey("Gauges reflect the last value", func() {
			UpdateStoreSize(12)
			UpdateStoreCapacity(1000)
			UpdateAdherence(50, 1)
			UpdateWorkerActive(true)
			So(testutil.ToFloat64(globalManager.storeSize), ShouldEqual, 12)
			So(testutil.ToFloat64(globalManager.adherencePercent), ShouldEqual, 50)
			So(testutil.ToFloat64(globalManager.todaysDoses), ShouldEqual, 1)
			So(testutil.ToFloat64(globalManager.workerActive), ShouldEqual, 1)
			UpdateWorkerActive(false)
			So(testutil.ToFloat64(globalManager.workerActive), ShouldEqual, 0)
		})

		Convey("Remaining recorders do not panic", func() {
			So(func() {
				RecordPersistError("si_events")
				RecordPersistLatency(3)
				UpdateSnapshotLastUnix(1700000000)
				UpdateBreakerState("redis", 2)
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordWorkerProcessingLatency(0.4)
				RecordWorkerError()
				AddWebSocketClients("feed", 1)
				AddWebSocketClients("feed", -1)
				RecordHTTPRequest("/v1/payloads", "POST", "202")
				RecordHTTPRequestDuration("/v1/payloads", "POST", "202", 2)
				RecordErrorByEndpoint("/v1/payloads", "POST", "bad_request")
			}, ShouldNotPanic)
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry behind a promhttp handler", t, func() {
		RecordEventIngested("binary")
		h := promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		So(rec.Code, ShouldEqual, http.StatusOK)
		So(strings.Contains(rec.Body.String(), "smartinhale_adherence_events_ingested_total"), ShouldBeTrue)
	})
}
