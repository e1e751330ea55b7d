package email

import (
	stdmail "net/mail"
	"strings"

	"github.com/pkg/errors"
)

// parseAddressList parses a comma separated RFC 5322 address list. An empty
// list yields nil.
func parseAddressList(field, list string) ([]*stdmail.Address, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	addrs, err := stdmail.ParseAddressList(list)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s address list %q", field, list)
	}
	return addrs, nil
}

func addressStrings(addrs []*stdmail.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.Address)
	}
	return out
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
