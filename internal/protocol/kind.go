package protocol

import "strconv"

// Kind tags the purpose of a Message on the wire.
// The numeric values are protocol-significant: client and server must agree.
type Kind uint8

const (
	ClientConnect       Kind = iota // regular chat line sent by a client
	ClientDisconnect                // reserved, never sent
	ClientRegister                  // body carries the display name
	ServerLoginAnnounce             // body carries the name of the member who joined
	Dummy                           // generic broadcast: "<name>\n<text>"
)

// MaxKind is the largest code that fits the 2-digit kind field.
const MaxKind Kind = 99

// Valid reports whether k fits the header's kind field.
func (k Kind) Valid() bool {
	return k <= MaxKind
}

func (k Kind) String() string {
	switch k {
	case ClientConnect:
		return "client_connect"
	case ClientDisconnect:
		return "client_disconnect"
	case ClientRegister:
		return "client_register"
	case ServerLoginAnnounce:
		return "server_login_announce"
	case Dummy:
		return "dummy"
	default:
		return "kind_" + strconv.Itoa(int(k))
	}
}
