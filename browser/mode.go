package browser

// Mode is the session state. A session is either closed or holds exactly
// one live browser, launched headless or headful.
type Mode int

const (
	ModeClosed Mode = iota
	ModeHeadless
	ModeHeadful
)

func (m Mode) String() string {
	switch m {
	case ModeHeadless:
		return "headless"
	case ModeHeadful:
		return "headful"
	default:
		return "closed"
	}
}
