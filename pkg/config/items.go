package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/clat64/clatd/pkg/cfgtree"
	"github.com/clat64/clatd/pkg/logging"
)

// Error classes for assembly failures. Callers decide process
// termination; nothing in this package exits.
var (
	// ErrMissingItem marks a required item with no value and no
	// usable default.
	ErrMissingItem = errors.New("missing config item")
	// ErrBadValue marks a present value that fails to parse as its
	// declared type.
	ErrBadValue = errors.New("bad config value")
	// ErrResolution marks a failure to resolve external state: no
	// IPv6 address on the uplink, or static PLAT mode without a
	// plat_subnet.
	ErrResolution = errors.New("resolution failed")
)

// itemString resolves key from the tree, falling back to def. An
// empty default marks the item as required.
func itemString(tree *cfgtree.Tree, key, def string) (string, error) {
	if v, ok := tree.Value(key); ok {
		return v, nil
	}
	if def == "" {
		logging.Fatal("config item needed", "key", key)
		return "", fmt.Errorf("%w: %s", ErrMissingItem, key)
	}
	return def, nil
}

// itemInt16 resolves key as a base-10 integer in the signed 16-bit
// range. Empty text, text without digits, trailing garbage and
// out-of-range values are each reported with the offending text.
func itemInt16(tree *cfgtree.Tree, key, def string) (int16, error) {
	raw, err := itemString(tree, key, def)
	if err != nil {
		return 0, err
	}
	digits := numericPrefix(raw)
	if digits == "" {
		logging.Fatal("config item is not numeric", "key", key, "value", raw)
		return 0, fmt.Errorf("%w: %s = %q", ErrBadValue, key, raw)
	}
	if rest := raw[len(digits):]; rest != "" {
		logging.Fatal("config item contains non-numeric characters", "key", key, "value", rest)
		return 0, fmt.Errorf("%w: %s = %q", ErrBadValue, key, raw)
	}
	v, err := strconv.ParseInt(digits, 10, 16)
	if err != nil {
		logging.Fatal("config item is too big/small", "key", key, "value", raw)
		return 0, fmt.Errorf("%w: %s = %q", ErrBadValue, key, raw)
	}
	return int16(v), nil
}

// numericPrefix returns the leading base-10 integer text of s, empty
// when s has no numeric content.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return ""
	}
	return s[:i]
}

// itemIPv4 resolves key as a dotted-decimal IPv4 address.
func itemIPv4(tree *cfgtree.Tree, key, def string) (netip.Addr, error) {
	raw, err := itemString(tree, key, def)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.Is4() {
		logging.Fatal("invalid IPv4 address specified", "key", key, "value", raw)
		return netip.Addr{}, fmt.Errorf("%w: %s = %q", ErrBadValue, key, raw)
	}
	return addr, nil
}

// itemIPv6 resolves key as an IPv6 address in its 16-byte form.
func itemIPv6(tree *cfgtree.Tree, key, def string) (netip.Addr, error) {
	raw, err := itemString(tree, key, def)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.Is6() {
		logging.Fatal("invalid IPv6 address specified", "key", key, "value", raw)
		return netip.Addr{}, fmt.Errorf("%w: %s = %q", ErrBadValue, key, raw)
	}
	return addr, nil
}
