package model_test

import (
	"testing"
	"time"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestClassifyEventType(t *testing.T) {
	convey.Convey("Given raw event labels", t, func() {
		convey.Convey("Then known labels map onto their type", func() {
			convey.So(model.ClassifyEventType("pull_request"), convey.ShouldEqual, model.EventPullRequest)
			convey.So(model.ClassifyEventType("push"), convey.ShouldEqual, model.EventPush)
			convey.So(model.ClassifyEventType(" Pull_Request_Review "), convey.ShouldEqual, model.EventReview)
		})

		convey.Convey("Then anything else is other", func() {
			convey.So(model.ClassifyEventType("issues"), convey.ShouldEqual, model.EventOther)
			convey.So(model.ClassifyEventType(""), convey.ShouldEqual, model.EventOther)
		})

		convey.Convey("Then an event reports its kind from the stored label", func() {
			e := model.InboundEvent{EventType: "push"}
			convey.So(e.Kind(), convey.ShouldEqual, model.EventPush)
		})
	})
}

func TestEntityHelpers(t *testing.T) {
	convey.Convey("Given pull requests and reviews", t, func() {
		now := time.Now()

		convey.Convey("Then merged is derived from the merge timestamp", func() {
			convey.So((&model.PullRequest{}).Merged(), convey.ShouldBeFalse)
			convey.So((&model.PullRequest{MergedAt: &now}).Merged(), convey.ShouldBeTrue)
		})

		convey.Convey("Then approval ignores case", func() {
			convey.So((&model.Review{State: "APPROVED"}).Approved(), convey.ShouldBeTrue)
			convey.So((&model.Review{State: "approved"}).Approved(), convey.ShouldBeTrue)
			convey.So((&model.Review{State: "CHANGES_REQUESTED"}).Approved(), convey.ShouldBeFalse)
		})
	})
}
