// Package betting computes action legality, amounts, and bet-size
// suggestions from the table snapshot. Everything here is a pure function
// of its inputs so the client stays consistent with server-side rules and
// the output is re-derivable byte for byte.
package betting

import "github.com/openfelt/tableclient/internal/protocol"

// Input is the slice of table state the calculator reads. Fields mirror the
// actionBar payload of the update-game event.
type Input struct {
	Stage          protocol.Stage
	CallAmount     int
	ChipsInPot     int
	MinBetAmount   int
	MinRaiseAmount int
	MaxRaiseAmount int
	TotalChips     int
	TotalPot       int
}

// Suggestion is one proposed raise-by amount with its display label.
type Suggestion struct {
	Label string
	Value int
}

// Result is the computed action bar.
type Result struct {
	LegalActions  []string
	CallRemaining int
	CallAllIn     bool
	MinRaise      int
	MaxRaise      int
	Suggestions   []Suggestion
}

// Compute derives the full action bar from one input snapshot.
func Compute(in Input) Result {
	return Result{
		LegalActions:  LegalActions(in),
		CallRemaining: in.CallAmount - in.ChipsInPot,
		CallAllIn:     in.CallAmount-in.ChipsInPot >= in.TotalChips,
		MinRaise:      in.MinRaiseAmount,
		MaxRaise:      in.MaxRaiseAmount,
		Suggestions:   Suggestions(in),
	}
}

// LegalActions derives the legal action set the same way the server does,
// so a stale or missing actions list never lets an illegal intent out.
func LegalActions(in Input) []string {
	toCall := in.CallAmount - in.ChipsInPot

	actions := []string{protocol.ActionFold}
	if toCall <= 0 {
		actions = append(actions, protocol.ActionCheck)
		if in.TotalChips > 0 {
			actions = append(actions, protocol.ActionRaise)
		}
		return actions
	}

	actions = append(actions, protocol.ActionCall)
	if in.TotalChips > toCall {
		actions = append(actions, protocol.ActionRaise)
	}
	return actions
}

// RaiseTo converts a raise-by amount into the raise-to amount sent on the
// wire.
func RaiseTo(in Input, raiseBy int) int {
	return in.CallAmount + raiseBy
}

// IsAllInRaise reports whether a raise-by amount should be labeled all-in:
// either it is the maximum raise or calling plus raising exceeds the stack.
func IsAllInRaise(in Input, raiseBy int) bool {
	return raiseBy == in.MaxRaiseAmount || (in.CallAmount-in.ChipsInPot)+raiseBy > in.TotalChips
}

// Suggestions proposes raise-by amounts.
//
// On the first betting round, while the minimum bet still equals the
// minimum raise and a 3x open would not commit the stack, the openings are
// min bet, 3x, and all-in. Every other spot offers pot fractions rounded up
// to a whole chip, filtered to the half-open range [minRaise, totalChips);
// the all-in entry uses the maximum raise amount and is subject to the same
// filter.
func Suggestions(in Input) []Suggestion {
	bet3x := in.MinBetAmount * 3
	if in.Stage == protocol.StagePreflop && in.MinBetAmount == in.MinRaiseAmount && bet3x < in.TotalChips {
		return []Suggestion{
			{Label: "Min bet", Value: in.MinRaiseAmount},
			{Label: "3BB", Value: bet3x},
			{Label: "All In", Value: in.MaxRaiseAmount},
		}
	}

	sizes := []Suggestion{
		{Label: "Min raise", Value: in.MinRaiseAmount},
		{Label: "1/4 Pot", Value: potFraction(in.TotalPot, 1, 4)},
		{Label: "1/3 Pot", Value: potFraction(in.TotalPot, 1, 3)},
		{Label: "1/2 Pot", Value: potFraction(in.TotalPot, 1, 2)},
		{Label: "2/3 Pot", Value: potFraction(in.TotalPot, 2, 3)},
		{Label: "3/4 Pot", Value: potFraction(in.TotalPot, 3, 4)},
		{Label: "Pot", Value: in.TotalPot},
		{Label: "All In", Value: in.MaxRaiseAmount},
	}

	filtered := make([]Suggestion, 0, len(sizes))
	for _, s := range sizes {
		if s.Value >= in.MinRaiseAmount && s.Value < in.TotalChips {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// potFraction returns ceil(pot * num / den) using integer arithmetic.
func potFraction(pot, num, den int) int {
	return (pot*num + den - 1) / den
}
