package constants

const (
	StatusNotStarted      = "NotStarted"
	StatusDownloading     = "Downloading"
	StatusGeneratingClaim = "GeneratingClaim"
	StatusSigningClaim    = "SigningClaim"
	StatusTimestamping    = "Timestamping"
	StatusCompleted       = "Completed"
	StatusFailed          = "Failed"
)

// StatusOrder lists the status values of a successful signing pipeline
// in the order a single asset moves through them. Failed is not in
// this list because it is reachable from any non-terminal status.
var StatusOrder = []string{
	StatusNotStarted,
	StatusDownloading,
	StatusGeneratingClaim,
	StatusSigningClaim,
	StatusTimestamping,
	StatusCompleted,
}

var statusRank = map[string]int{
	StatusNotStarted:      0,
	StatusDownloading:     1,
	StatusGeneratingClaim: 2,
	StatusSigningClaim:    3,
	StatusTimestamping:    4,
	StatusCompleted:       5,
}

// StatusIsValid returns true if status is one of the defined asset
// status values, including Failed.
func StatusIsValid(status string) bool {
	if status == StatusFailed {
		return true
	}
	_, ok := statusRank[status]
	return ok
}

// StatusIsTerminal returns true for Completed and Failed, the two
// statuses an asset can never leave.
func StatusIsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// NextStatusValid says whether an asset may move from one status to
// another. Statuses move forward only. Failed is reachable from any
// non-terminal status and is terminal.
func NextStatusValid(from, to string) bool {
	if !StatusIsValid(from) || !StatusIsValid(to) {
		return false
	}
	if StatusIsTerminal(from) {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return statusRank[to] > statusRank[from]
}
