package repository_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/model"
)

// dbSeq keeps every in-memory database distinct; a shared-cache DSN is
// process-wide per name, and the connection pool needs all connections to
// see the same schema.
var dbSeq atomic.Int64

func openStore(t *testing.T) *repository.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared&_busy_timeout=5000", dbSeq.Add(1))
	store, err := repository.Open(context.Background(), "sqlite", dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSolve(userID string, timeMs int64, createdAt time.Time) *model.Solve {
	return &model.Solve{
		ID:        uuid.New(),
		UserID:    userID,
		Scramble:  "R U R' U'",
		TimeMs:    timeMs,
		Source:    "timer",
		CreatedAt: createdAt,
	}
}

func TestSolveIdempotency(t *testing.T) {
	Convey("Given a store", t, func() {
		store := openStore(t)
		ctx := context.Background()

		Convey("When a solve is created with an idempotency key", func() {
			solve := newSolve("user-1", 10000, time.Now().UTC())
			So(store.CreateWithIdempotency(ctx, solve, "key-1"), ShouldBeNil)

			Convey("Then the key resolves back to the solve", func() {
				id, err := store.LookupIdempotency(ctx, "user-1", "key-1")
				So(err, ShouldBeNil)
				So(id, ShouldEqual, solve.ID)
			})

			Convey("And reusing the key is rejected as a duplicate", func() {
				err := store.CreateWithIdempotency(ctx, newSolve("user-1", 11000, time.Now().UTC()), "key-1")
				So(err, ShouldWrap, repository.ErrDuplicateKey)

				Convey("And exactly one solve exists", func() {
					n, err := store.CountByUser(ctx, "user-1")
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)
				})
			})

			Convey("And the same key under another user is independent", func() {
				err := store.CreateWithIdempotency(ctx, newSolve("user-2", 11000, time.Now().UTC()), "key-1")
				So(err, ShouldBeNil)
			})
		})

		Convey("When many goroutines race the same key", func() {
			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = store.CreateWithIdempotency(ctx, newSolve("racer", 10000, time.Now().UTC()), "shared")
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one insert wins", func() {
				wins := 0
				for _, err := range errs {
					if err == nil {
						wins++
					}
				}
				So(wins, ShouldEqual, 1)

				n, err := store.CountByUser(ctx, "racer")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When looking up an unused key", func() {
			_, err := store.LookupIdempotency(ctx, "user-1", "never-used")

			Convey("Then it is a not-found", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}

func TestSolveListing(t *testing.T) {
	Convey("Given a store holding a sequence of solves", t, func() {
		store := openStore(t)
		ctx := context.Background()

		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		var all []*model.Solve
		for i := 0; i < 7; i++ {
			s := newSolve("user-1", int64(10000+i*100), base.Add(time.Duration(i)*time.Minute))
			if i == 3 {
				s.Penalty = model.PenaltyDNF
			}
			So(store.CreateWithIdempotency(ctx, s, fmt.Sprintf("key-%d", i)), ShouldBeNil)
			all = append(all, s)
		}

		Convey("When listing with a small page size", func() {
			page1, next, err := store.List(ctx, "user-1", "", 3, repository.Filters{})
			So(err, ShouldBeNil)

			Convey("Then the first page is the most recent solves", func() {
				So(len(page1), ShouldEqual, 3)
				So(page1[0].ID, ShouldEqual, all[6].ID)
				So(page1[2].ID, ShouldEqual, all[4].ID)
				So(next, ShouldNotEqual, repository.Cursor(""))
			})

			Convey("And following the cursor continues without gaps or repeats", func() {
				page2, next2, err := store.List(ctx, "user-1", next, 3, repository.Filters{})
				So(err, ShouldBeNil)
				So(len(page2), ShouldEqual, 3)
				So(page2[0].ID, ShouldEqual, all[3].ID)

				page3, next3, err := store.List(ctx, "user-1", next2, 3, repository.Filters{})
				So(err, ShouldBeNil)
				So(len(page3), ShouldEqual, 1)
				So(page3[0].ID, ShouldEqual, all[0].ID)
				So(next3.IsZero(), ShouldBeTrue)
			})

			Convey("And inserting mid-pagination does not shift the next page", func() {
				newest := newSolve("user-1", 9000, base.Add(time.Hour))
				So(store.CreateWithIdempotency(ctx, newest, "key-late"), ShouldBeNil)

				page2, _, err := store.List(ctx, "user-1", next, 3, repository.Filters{})
				So(err, ShouldBeNil)
				So(page2[0].ID, ShouldEqual, all[3].ID)
			})
		})

		Convey("When filtering by penalty", func() {
			dnf := model.PenaltyDNF
			solves, _, err := store.List(ctx, "user-1", "", 0, repository.Filters{Penalty: &dnf})

			Convey("Then only matching solves return", func() {
				So(err, ShouldBeNil)
				So(len(solves), ShouldEqual, 1)
				So(solves[0].ID, ShouldEqual, all[3].ID)
			})
		})

		Convey("When filtering by time bounds", func() {
			since := base.Add(4 * time.Minute)
			solves, _, err := store.List(ctx, "user-1", "", 0, repository.Filters{Since: &since})

			Convey("Then older solves are excluded", func() {
				So(err, ShouldBeNil)
				So(len(solves), ShouldEqual, 3)
			})
		})

		Convey("When the limit exceeds the maximum", func() {
			_, _, err := store.List(ctx, "user-1", "", 1000, repository.Filters{})

			Convey("Then the request is rejected", func() {
				So(err, ShouldWrap, repository.ErrInvalidLimit)
			})
		})

		Convey("When the cursor is garbage", func() {
			_, _, err := store.List(ctx, "user-1", "not-base64!", 10, repository.Filters{})

			Convey("Then the request is rejected", func() {
				So(err, ShouldWrap, repository.ErrInvalidCursor)
			})
		})
	})
}

func TestSolveMutations(t *testing.T) {
	Convey("Given a stored solve", t, func() {
		store := openStore(t)
		ctx := context.Background()
		solve := newSolve("user-1", 10000, time.Now().UTC())
		So(store.CreateWithIdempotency(ctx, solve, "key-1"), ShouldBeNil)

		Convey("When updating the penalty", func() {
			plus := model.PenaltyPlus
			updated, err := store.UpdatePenaltyNotes(ctx, "user-1", solve.ID, &plus, nil)

			Convey("Then the penalty changes and the rest stays put", func() {
				So(err, ShouldBeNil)
				So(updated.Penalty, ShouldEqual, model.PenaltyPlus)
				So(updated.TimeMs, ShouldEqual, 10000)
				So(updated.Scramble, ShouldEqual, solve.Scramble)
			})
		})

		Convey("When updating the notes only", func() {
			notes := "lockup on the last pair"
			updated, err := store.UpdatePenaltyNotes(ctx, "user-1", solve.ID, nil, &notes)

			Convey("Then the notes change and the penalty is untouched", func() {
				So(err, ShouldBeNil)
				So(updated.Notes, ShouldEqual, notes)
				So(updated.Penalty, ShouldEqual, model.PenaltyNone)
			})
		})

		Convey("When another user tries to update it", func() {
			plus := model.PenaltyPlus
			_, err := store.UpdatePenaltyNotes(ctx, "user-2", solve.ID, &plus, nil)

			Convey("Then the solve is not found for them", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When deleting it", func() {
			So(store.Delete(ctx, "user-1", solve.ID), ShouldBeNil)

			Convey("Then it is gone", func() {
				_, err := store.GetByID(ctx, solve.ID)
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("And deleting again is a not-found", func() {
				So(store.Delete(ctx, "user-1", solve.ID), ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}

func TestScoreStore(t *testing.T) {
	Convey("Given a store and a solve", t, func() {
		store := openStore(t)
		ctx := context.Background()
		solve := newSolve("user-1", 10000, time.Now().UTC())
		So(store.CreateWithIdempotency(ctx, solve, "key-1"), ShouldBeNil)

		rec := &model.ScoreRecord{
			SolveID:      solve.ID,
			UserID:       "user-1",
			Score:        72.5,
			ScoreVersion: "heuristic_v1",
			ComputedAt:   time.Now().UTC(),
		}

		Convey("When storing a score record", func() {
			stored, err := store.CreateIfAbsent(ctx, rec)
			So(err, ShouldBeNil)
			So(stored.Score, ShouldEqual, 72.5)

			Convey("And storing the same (solve, version) again", func() {
				dup := &model.ScoreRecord{
					SolveID:      solve.ID,
					UserID:       "user-1",
					Score:        99,
					ScoreVersion: "heuristic_v1",
					ComputedAt:   time.Now().UTC(),
				}
				again, err := store.CreateIfAbsent(ctx, dup)

				Convey("Then the original record is returned unchanged", func() {
					So(err, ShouldBeNil)
					So(again.ID, ShouldEqual, stored.ID)
					So(again.Score, ShouldEqual, 72.5)
				})
			})

			Convey("And storing a new version appends to the lineage", func() {
				v2 := &model.ScoreRecord{
					SolveID:      solve.ID,
					UserID:       "user-1",
					Score:        81,
					ScoreVersion: "global_v2",
					ComputedAt:   time.Now().UTC().Add(time.Second),
				}
				_, err := store.CreateIfAbsent(ctx, v2)
				So(err, ShouldBeNil)

				history, err := store.BySolve(ctx, solve.ID)
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 2)
				So(history[0].ScoreVersion, ShouldEqual, "global_v2")

				latest, err := store.Latest(ctx, solve.ID)
				So(err, ShouldBeNil)
				So(latest.ScoreVersion, ShouldEqual, "global_v2")
			})

			Convey("And the latest-score map covers scored solves only", func() {
				unscored := newSolve("user-1", 11000, time.Now().UTC())
				So(store.CreateWithIdempotency(ctx, unscored, "key-2"), ShouldBeNil)

				scores, err := store.LatestScores(ctx, []uuid.UUID{solve.ID, unscored.ID})
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 1)
				So(scores[solve.ID], ShouldEqual, 72.5)
			})
		})

		Convey("When asking for scores of an unscored solve", func() {
			_, err := store.Latest(ctx, uuid.New())

			Convey("Then it is a not-found", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}

func TestSnapshotStore(t *testing.T) {
	Convey("Given a store", t, func() {
		store := openStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		snap := func(computedAt time.Time, count int64) *model.DashboardSnapshot {
			return &model.DashboardSnapshot{
				UserID:     "user-1",
				RangeID:    model.Range7d,
				AsOfBucket: now.Format("2006-01-02"),
				Count:      count,
				ComputedAt: computedAt,
			}
		}

		Convey("When no snapshot exists yet", func() {
			_, err := store.Get(ctx, "user-1", model.Range7d)

			Convey("Then the read misses", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When a snapshot is written", func() {
			So(store.Put(ctx, snap(now, 5)), ShouldBeNil)

			Convey("Then it is served back", func() {
				got, err := store.Get(ctx, "user-1", model.Range7d)
				So(err, ShouldBeNil)
				So(got.Count, ShouldEqual, 5)
			})

			Convey("And a newer write replaces it", func() {
				So(store.Put(ctx, snap(now.Add(time.Second), 6)), ShouldBeNil)

				got, err := store.Get(ctx, "user-1", model.Range7d)
				So(err, ShouldBeNil)
				So(got.Count, ShouldEqual, 6)
			})

			Convey("And a write triggered before the stored one is discarded", func() {
				err := store.Put(ctx, snap(now.Add(-time.Second), 3))
				So(err, ShouldEqual, repository.ErrStaleSnapshot)

				got, err := store.Get(ctx, "user-1", model.Range7d)
				So(err, ShouldBeNil)
				So(got.Count, ShouldEqual, 5)
			})
		})

		Convey("When snapshots exist for several ranges", func() {
			So(store.Put(ctx, snap(now, 5)), ShouldBeNil)
			other := snap(now, 50)
			other.RangeID = model.RangeAll
			So(store.Put(ctx, other), ShouldBeNil)

			Convey("Then each range reads independently", func() {
				week, err := store.Get(ctx, "user-1", model.Range7d)
				So(err, ShouldBeNil)
				So(week.Count, ShouldEqual, 5)

				all, err := store.Get(ctx, "user-1", model.RangeAll)
				So(err, ShouldBeNil)
				So(all.Count, ShouldEqual, 50)
			})
		})
	})
}

func TestJobStore(t *testing.T) {
	Convey("Given a store", t, func() {
		store := openStore(t)
		ctx := context.Background()

		Convey("When enqueuing a job", func() {
			job, err := store.Enqueue(ctx, "user-1", "threshold", "user:user-1:threshold:50")
			So(err, ShouldBeNil)
			So(job.Status, ShouldEqual, model.JobQueued)

			Convey("And enqueuing the same trigger again", func() {
				again, err := store.Enqueue(ctx, "user-1", "threshold", "user:user-1:threshold:50")

				Convey("Then the existing job is returned", func() {
					So(err, ShouldBeNil)
					So(again.ID, ShouldEqual, job.ID)
				})
			})

			Convey("And claiming it", func() {
				claimed, err := store.ClaimNext(ctx)
				So(err, ShouldBeNil)
				So(claimed.ID, ShouldEqual, job.ID)
				So(claimed.Status, ShouldEqual, model.JobRunning)
				So(claimed.StartedAt, ShouldNotBeNil)

				Convey("Then the queue is empty afterwards", func() {
					_, err := store.ClaimNext(ctx)
					So(err, ShouldEqual, repository.ErrNoJob)
				})

				Convey("And marking it done finishes it", func() {
					So(store.MarkDone(ctx, claimed.ID), ShouldBeNil)

					got, err := store.GetJob(ctx, claimed.ID)
					So(err, ShouldBeNil)
					So(got.Status, ShouldEqual, model.JobDone)
					So(got.FinishedAt, ShouldNotBeNil)
				})

				Convey("And marking it failed records the reason", func() {
					So(store.MarkFailed(ctx, claimed.ID, "bundle missing"), ShouldBeNil)

					got, err := store.GetJob(ctx, claimed.ID)
					So(err, ShouldBeNil)
					So(got.Status, ShouldEqual, model.JobFailed)
					So(got.ErrorMessage, ShouldEqual, "bundle missing")
				})
			})
		})

		Convey("When jobs are claimed oldest first", func() {
			first, err := store.Enqueue(ctx, "user-1", "threshold", "trigger-a")
			So(err, ShouldBeNil)
			_, err = store.Enqueue(ctx, "user-2", "threshold", "trigger-b")
			So(err, ShouldBeNil)

			claimed, err := store.ClaimNext(ctx)
			So(err, ShouldBeNil)

			Convey("Then the earliest enqueue wins", func() {
				So(claimed.ID, ShouldEqual, first.ID)
			})
		})

		Convey("When a worker restarts with a job still running", func() {
			_, err := store.Enqueue(ctx, "user-1", "threshold", "trigger-a")
			So(err, ShouldBeNil)
			claimed, err := store.ClaimNext(ctx)
			So(err, ShouldBeNil)

			reconciled, err := store.ReconcileRunning(ctx)

			Convey("Then the orphaned job is failed, never assumed done", func() {
				So(err, ShouldBeNil)
				So(reconciled, ShouldEqual, 1)

				got, err := store.GetJob(ctx, claimed.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.JobFailed)
			})
		})

		Convey("When the queue is empty", func() {
			_, err := store.ClaimNext(ctx)

			Convey("Then there is nothing to claim", func() {
				So(err, ShouldEqual, repository.ErrNoJob)
			})
		})
	})
}
