package domain

// MFAEnrollment is returned when a user starts TOTP enrollment. The secret
// and QR code are shown exactly once; activation requires proving possession
// by submitting a valid code.
type MFAEnrollment struct {
	Secret  string `json:"secret"`  // base32 TOTP secret
	QRCode  string `json:"qr_code"` // data:image/png;base64 provisioning QR
	URL     string `json:"url"`     // otpauth:// provisioning URI
	Issuer  string `json:"issuer"`  // issuer shown in authenticator apps
	Account string `json:"account"` // account label, normally the email
}
