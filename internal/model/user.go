package model

// User is the device directory record: the minimal projection of a user this
// subsystem needs to target push delivery.
type User struct {
	ID          string `json:"id"`           // external user identifier
	DeviceToken string `json:"device_token"` // push gateway device token
}
