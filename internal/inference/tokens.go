package inference

// approxTokens estimates the token count of a string at roughly four
// characters per token, which is close enough for chunk budgeting.
func approxTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}
