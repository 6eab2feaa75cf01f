// Package pacing implements budget-constrained bidding controllers for repeated auctions.
//
// Every controller turns a value and an estimated click-through rate into a bid by scaling
// value × CTR with an adaptive ROI bid, and adapts that multiplier from what it paid so that
// spend tracks a per-iteration budget.
//
// Time is divided into rounds (one auction each), steps of RoundsPerStep rounds where the ROI
// bid is adjusted, and iterations of RoundsPerIter rounds where the budget is renewed.
//
// Variants:
//   - TruthfulController and BudgetOnlyController are the unpaced baselines.
//   - IMPCController inverts the observed bid→spend curve (SolveBid) each step.
//   - NewBidCapController is IMPC with the ROI bid capped at 1.0.
//   - SPBController targets the spend-optimal point of a fitted response curve
//     (FitResponseCurve) and falls back to capped IMPC pacing.
//   - PIDROIController runs a PID loop on realized ROI.
package pacing
