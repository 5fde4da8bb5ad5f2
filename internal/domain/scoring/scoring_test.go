package scoring_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cubetrics/internal/domain/scoring"
)

func TestHeuristicScorer_Score(t *testing.T) {
	Convey("Given a heuristic scorer", t, func() {
		scorer := scoring.NewHeuristicScorer()
		history := []int64{11000, 10000, 9000, 10500, 9500} // oldest first, median 10000

		Convey("When a solve matches the historical baseline exactly", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				SolveID:     uuid.New(),
				UserID:      "user-1",
				EffectiveMs: 10000,
				History:     history,
			})

			Convey("Then the score sits at the curve midpoint", func() {
				So(err, ShouldBeNil)
				So(result.Score, ShouldAlmostEqual, 50, 0.001)
				So(result.ScoreVersion, ShouldEqual, scoring.HeuristicVersion)
				So(result.ExpectedTimeMs, ShouldNotBeNil)
				So(*result.ExpectedTimeMs, ShouldEqual, 10000)
				So(result.DNFRisk, ShouldEqual, 0)
			})
		})

		Convey("When comparing a faster and a slower solve", func() {
			fast, err1 := scorer.Score(context.Background(), scoring.Input{
				EffectiveMs: 8000,
				History:     history,
			})
			slow, err2 := scorer.Score(context.Background(), scoring.Input{
				EffectiveMs: 12000,
				History:     history,
			})

			Convey("Then the score strictly decreases with effective time", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(fast.Score, ShouldBeGreaterThan, 50)
				So(slow.Score, ShouldBeLessThan, 50)
				So(fast.Score, ShouldBeGreaterThan, slow.Score)
			})
		})

		Convey("When the solve is a DNF", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				DNF:     true,
				History: history,
			})

			Convey("Then the score is minimal and DNF risk maximal", func() {
				So(err, ShouldBeNil)
				So(result.Score, ShouldEqual, 0)
				So(result.DNFRisk, ShouldEqual, 1)
				So(result.ExpectedTimeMs, ShouldNotBeNil)
				So(*result.ExpectedTimeMs, ShouldEqual, 10000)
			})
		})

		Convey("When no history exists but a skill prior does", func() {
			prior := int64(15000)
			result, err := scorer.Score(context.Background(), scoring.Input{
				EffectiveMs:  15000,
				SkillPriorMs: &prior,
			})

			Convey("Then the prior stands in for the baseline", func() {
				So(err, ShouldBeNil)
				So(result.Score, ShouldAlmostEqual, 50, 0.001)
				So(*result.ExpectedTimeMs, ShouldEqual, 15000)
			})
		})

		Convey("When neither history nor prior exist", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				EffectiveMs: 10000,
			})

			Convey("Then the solve is its own baseline and scores neutral", func() {
				So(err, ShouldBeNil)
				So(result.Score, ShouldAlmostEqual, 50, 0.001)
			})
		})

		Convey("When the score is computed for extreme ratios", func() {
			blazing, _ := scorer.Score(context.Background(), scoring.Input{
				EffectiveMs: 1,
				History:     history,
			})
			glacial, _ := scorer.Score(context.Background(), scoring.Input{
				EffectiveMs: 10000000,
				History:     history,
			})

			Convey("Then the score stays within bounds", func() {
				So(blazing.Score, ShouldBeLessThanOrEqualTo, 100)
				So(blazing.Score, ShouldBeGreaterThan, 90)
				So(glacial.Score, ShouldBeGreaterThanOrEqualTo, 0)
				So(glacial.Score, ShouldBeLessThan, 10)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := scorer.Score(ctx, scoring.Input{EffectiveMs: 10000})

			Convey("Then the context error is returned", func() {
				So(err, ShouldEqual, context.Canceled)
			})
		})
	})
}

func TestHeuristicScorer_Options(t *testing.T) {
	Convey("Given scorers with different curve steepness", t, func() {
		gentle := scoring.NewHeuristicScorer(scoring.WithSteepness(1))
		steep := scoring.NewHeuristicScorer(scoring.WithSteepness(10))
		history := []int64{10000, 10000, 10000}

		Convey("When scoring the same slightly-slow solve", func() {
			g, _ := gentle.Score(context.Background(), scoring.Input{EffectiveMs: 11000, History: history})
			s, _ := steep.Score(context.Background(), scoring.Input{EffectiveMs: 11000, History: history})

			Convey("Then the steeper curve punishes it harder", func() {
				So(s.Score, ShouldBeLessThan, g.Score)
			})
		})
	})
}
