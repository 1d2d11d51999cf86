package models

type AuthorizationType string

const (
    AuthorizationPin AuthorizationType = "pin"
    AuthorizationOTP AuthorizationType = "otp"
    AuthorizationAVS AuthorizationType = "avs"
)

// AVSFields carries the address verification values requested through a
// requires_additional_fields next action.
type AVSFields struct {
    Address string `json:"address"`
    City    string `json:"city"`
    State   string `json:"state"`
    Zip     string `json:"zip"`
    Country string `json:"country"`
}

// AuthorizationSubmission is submitted against an existing charge id, never
// standalone. Exactly one of Pin, OTP or AVS is set, matching Type.
type AuthorizationSubmission struct {
    Type AuthorizationType `json:"type"`
    Pin  *EncryptedPin     `json:"pin,omitempty"`
    OTP  string            `json:"otp,omitempty"`
    AVS  *AVSFields        `json:"avs,omitempty"`
}
