package handler

const (
	UserActivityLogRegistrationDescription = "Account registered"
	UserActivityLogLoginDescription        = "Logged in"
	UserActivityLogFailedLoginDescription  = "Failed login attempt"
	UserActivityLogLockedDescription       = "Account locked after consecutive failed logins"
)

// consecutiveFailedLoginsBeforeLock is how many failed attempts in a row
// lock an account.
const consecutiveFailedLoginsBeforeLock = 3
