package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry and options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every metric is registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.webhookOutcomes.WithLabelValues(OutcomeSaved).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_webhook_outcomes_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating two managers on separate registries", func() {
			So(func() {
				NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
				NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording webhook outcomes", func() {
			before := testutil.ToFloat64(globalManager.webhookOutcomes.WithLabelValues(OutcomeDuplicate))
			RecordWebhookOutcome(OutcomeDuplicate)

			Convey("Then the labelled counter increases", func() {
				after := testutil.ToFloat64(globalManager.webhookOutcomes.WithLabelValues(OutcomeDuplicate))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording a failed score recompute", func() {
			before := testutil.ToFloat64(globalManager.scoringErrors)
			RecordScoreRecompute(3*time.Millisecond, errors.New("boom"))

			Convey("Then the error counter increases", func() {
				So(testutil.ToFloat64(globalManager.scoringErrors)-before, ShouldEqual, 1)
			})
		})

		Convey("When recording a poller tick", func() {
			before := testutil.ToFloat64(globalManager.pollerEventsPicked)
			RecordPollerTick(10*time.Millisecond, 4)

			Convey("Then picked events are accumulated", func() {
				So(testutil.ToFloat64(globalManager.pollerEventsPicked)-before, ShouldEqual, 4)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(3)
			UpdateDedupeCacheSize(12)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.dedupeCacheSize), ShouldEqual, 12)
			})
		})

		Convey("When recording the rest of the helpers", func() {
			So(func() {
				RecordWebhookReceived("push")
				RecordDispatch("memory", DispatchOK)
				RecordPollerTickSkipped()
				RecordEventProcessed("push", ResultProcessed, time.Millisecond)
				RecordHTTPRequest("/stats", "GET", 200, time.Millisecond)
				UpdateSystemMetrics()
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
