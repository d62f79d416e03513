package event

const (
	CredentialChangedDestination string = "identity.credential_changed"
	AccountRemovedDestination    string = "identity.account_removed"

	// CredentialChangedConsumerTwoFactor and AccountRemovedConsumerTwoFactor
	// are the consumer groups of this service.
	CredentialChangedConsumerTwoFactor string = "identity_credential_changed_twofactor"
	AccountRemovedConsumerTwoFactor    string = "identity_account_removed_twofactor"
)

// AccountMessage is the body of identity events that only name an account.
type AccountMessage struct {
	AccountID int64 `json:"account_id"`
}
