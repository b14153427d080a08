package view

import (
	"soroban-dao/internal/domain"
	"soroban-dao/internal/session"
)

// Transaction status labels.
const (
	TxExecuted = "Executed"
	TxReady    = "Ready"
	TxPending  = "Pending"
)

// TxStatusLabel classifies a treasury transaction.
func TxStatusLabel(tx *domain.TreasuryTransaction) string {
	switch {
	case tx.Executed:
		return TxExecuted
	case tx.Ready():
		return TxReady
	}
	return TxPending
}

// Tone is the colour family of a badge.
type Tone string

const (
	ToneGreen  Tone = "green"
	ToneBlue   Tone = "blue"
	ToneRed    Tone = "red"
	TonePurple Tone = "purple"
	ToneGray   Tone = "gray"
	ToneYellow Tone = "yellow"
)

// Badge is a short coloured status marker.
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

var proposalTones = map[domain.ProposalStatus]Tone{
	domain.ProposalActive:   ToneGreen,
	domain.ProposalPassed:   ToneBlue,
	domain.ProposalRejected: ToneRed,
	domain.ProposalExecuted: TonePurple,
	domain.ProposalExpired:  ToneGray,
}

// ProposalBadge returns the status badge for a proposal. Unknown statuses
// render gray.
func ProposalBadge(status domain.ProposalStatus) Badge {
	tone, ok := proposalTones[status]
	if !ok {
		tone = ToneGray
	}
	return Badge{Label: string(status), Tone: tone}
}

// TxBadge returns the status badge for a treasury transaction.
func TxBadge(tx *domain.TreasuryTransaction) Badge {
	label := TxStatusLabel(tx)
	switch label {
	case TxExecuted:
		return Badge{Label: label, Tone: ToneGray}
	case TxReady:
		return Badge{Label: label, Tone: ToneGreen}
	}
	return Badge{Label: label, Tone: ToneYellow}
}

// Button is the label and enabled state of an action button.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	Busy     bool   `json:"busy,omitempty"`
}

// VoteButton returns the state of a vote button. A disabled button
// explains why.
func VoteButton(voteFor, hasVoted, votingClosed bool) Button {
	switch {
	case hasVoted:
		return Button{Label: "Already Voted", Disabled: true}
	case votingClosed:
		return Button{Label: "Voting Closed", Disabled: true}
	case voteFor:
		return Button{Label: "Vote For"}
	}
	return Button{Label: "Vote Against"}
}

// WalletButton returns the state of the wallet connect button.
func WalletButton(s session.Snapshot) Button {
	switch {
	case !s.Installed:
		return Button{Label: "Install Wallet"}
	case s.Connecting:
		return Button{Label: "Connecting...", Disabled: true, Busy: true}
	case s.Connected():
		return Button{Label: ShortAddress(s.Address)}
	}
	return Button{Label: "Connect Wallet"}
}
