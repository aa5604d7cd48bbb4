package logging

// MaskSecret keeps the first four characters of a token for correlation and hides the rest.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "*****"
	}
	return s[:4] + "*****"
}
