package consent

import "time"

// Purpose is the closed set of consent types the platform tracks.
type Purpose string

const (
	PurposeDataCollection Purpose = "data_collection"
	PurposeDataSharing    Purpose = "data_sharing"
	PurposeDataProcessing Purpose = "data_processing"
	PurposeMarketing      Purpose = "marketing"
	PurposeResearch       Purpose = "research"
	PurposePhotoVideo     Purpose = "photo_video"
	PurposeAnalytics      Purpose = "analytics"
	PurposeCookies        Purpose = "cookies"
	PurposeThirdParty     Purpose = "third_party"
)

var validPurposes = map[Purpose]struct{}{
	PurposeDataCollection: {},
	PurposeDataSharing:    {},
	PurposeDataProcessing: {},
	PurposeMarketing:      {},
	PurposeResearch:       {},
	PurposePhotoVideo:     {},
	PurposeAnalytics:      {},
	PurposeCookies:        {},
	PurposeThirdParty:     {},
}

func (p Purpose) Valid() bool {
	_, ok := validPurposes[p]
	return ok
}

// SubjectRef identifies who the consent belongs to. Exactly one field must be
// populated; consent is never shared between a user, a student and a guardian.
type SubjectRef struct {
	UserID     string `json:"user_id,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	GuardianID string `json:"guardian_id,omitempty"`
}

// Valid reports whether exactly one subject field is set.
func (s SubjectRef) Valid() bool {
	n := 0
	for _, id := range []string{s.UserID, s.StudentID, s.GuardianID} {
		if id != "" {
			n++
		}
	}
	return n == 1
}

// Record is one grant instance in the ledger. Revocation is terminal for the
// instance; granting again creates a new record.
type Record struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Subject      SubjectRef     `json:"subject"`
	Purpose      Purpose        `json:"purpose"`
	Granted      bool           `json:"granted"`
	GrantedAt    time.Time      `json:"granted_at"`
	RevokedAt    *time.Time     `json:"revoked_at,omitempty"`
	RevokeReason string         `json:"revoke_reason,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// UserConsent is the per-purpose view returned by ListAll.
type UserConsent struct {
	Purpose   Purpose        `json:"consent_type"`
	Granted   bool           `json:"granted"`
	GrantedAt time.Time      `json:"granted_at"`
	RevokedAt *time.Time     `json:"revoked_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
