package models

// ChargeStatus mirrors the status field Kwelipay reports on a direct charge.
type ChargeStatus string

const (
    ChargeStatusPending        ChargeStatus = "pending"
    ChargeStatusRequiresAction ChargeStatus = "requires_action"
    ChargeStatusSucceeded      ChargeStatus = "succeeded"
    ChargeStatusFailed         ChargeStatus = "failed"
    ChargeStatusCancelled      ChargeStatus = "cancelled"
    ChargeStatusTimeout        ChargeStatus = "timeout"
)

func (cs ChargeStatus) String() string {
    return string(cs)
}

func (cs ChargeStatus) IsValid() bool {
    switch cs {
    case ChargeStatusPending, ChargeStatusRequiresAction, ChargeStatusSucceeded,
        ChargeStatusFailed, ChargeStatusCancelled, ChargeStatusTimeout:
        return true
    default:
        return false
    }
}

// IsTerminal reports whether no further transition is expected. Terminal
// sessions reject all subsequent status updates.
func (cs ChargeStatus) IsTerminal() bool {
    switch cs {
    case ChargeStatusSucceeded, ChargeStatusFailed, ChargeStatusCancelled, ChargeStatusTimeout:
        return true
    default:
        return false
    }
}
