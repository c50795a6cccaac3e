package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("feed"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors should be registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.feedRequests.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_feed_feed_requests_total"], ShouldBeTrue)
			})
		})

		Convey("When registering the same metrics twice on one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should panic on duplicate registration", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording feed requests", func() {
			before := testutil.ToFloat64(globalManager.feedRequests)
			RecordFeedRequest(24)
			RecordFeedRequest(0)

			Convey("Then the request counter should advance", func() {
				So(testutil.ToFloat64(globalManager.feedRequests), ShouldEqual, before+2)
			})
		})

		Convey("When recording dispatched commands", func() {
			before := testutil.ToFloat64(globalManager.commandsDispatched.WithLabelValues("steps", "200"))
			RecordCommandDispatched("steps", 200)

			Convey("Then the labelled counter should advance", func() {
				So(testutil.ToFloat64(globalManager.commandsDispatched.WithLabelValues("steps", "200")), ShouldEqual, before+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateTaskerQueueSize(7)
			UpdateTaskerQueueCapacity(64)
			UpdateStoreReadings(288)

			Convey("Then they should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.taskerQueueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.taskerQueueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.storeReadings), ShouldEqual, 288)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then none of them should panic", func() {
				So(func() {
					RecordFeedAssemblyFault()
					RecordFeedStoreUnavailable()
					RecordAuxInjected("aaps")
					RecordRouteResolution("tasker", 503)
					RecordStatusUpdate()
					RecordStoreQueryLatency("latest", 1.5)
					RecordStoreError("insert")
					RecordTaskerEnqueued()
					RecordTaskerRejected("queue_full")
					RecordTaskerDelivered(3)
					RecordTaskerDeliveryError()
					UpdateWorkerCount(2)
					RecordHTTPRequest("sgv", "GET", "200")
					RecordHTTPRequestDuration("sgv", "GET", "200", 4)
					RecordErrorByEndpoint("status", "POST", "client_error")
					RecordErrorByType("client_error", "medium")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})

		Convey("When fetching the registry", func() {
			Convey("Then it should be the custom registry", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
