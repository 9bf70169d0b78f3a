// Package argsanitize validates every value that ends up as an argv element
// or SSH option for an rsync/rclone invocation. Nothing here builds a shell
// command line: all exec is list-form (see internal/transfer), so this
// package's job is narrower than shell-escaping — reject anything that
// looks like an attempt to smuggle extra flags or control characters through
// a field that should hold a port, hostname, or file path.
package argsanitize

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// portDangerous is the character set rejected from SSH port strings.
const portDangerous = "$`|;&\n\x00()[]{}<>'\"\\*?!#~%"

// hostDangerous is the character set rejected from hostnames and proxy
// jump specs.
const hostDangerous = "$`|;&\n\x00\r()[]{}<>'\"\\*?!#~%"

// filePathDangerous is the narrower character set rejected from SSH
// identity/config file paths, which legitimately contain spaces and ~.
const filePathDangerous = "$`|;&\n\x00\r"

// sshOptionDangerous is the character set rejected from generic SSH option
// values (StrictHostKeyChecking, UserKnownHostsFile, ...).
const sshOptionDangerous = "$`|;&\n\x00\r()[]{}<>'\"\\"

var bannedSSHDirectives = []string{"proxycommand", "localcommand", "permitlocalcommand"}

// ValidateSSHPort parses and validates an SSH port string, rejecting shell
// metacharacters and out-of-range values.
func ValidateSSHPort(port string) (uint16, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		return 0, amberr.New(amberr.KindValidationError, "SSH port cannot be empty")
	}
	if containsAny(port, portDangerous) {
		return 0, amberr.New(amberr.KindValidationError, "SSH port contains invalid characters")
	}
	if containsWhitespace(port) {
		return 0, amberr.New(amberr.KindValidationError, "SSH port cannot contain whitespace")
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return 0, amberr.New(amberr.KindValidationError, "SSH port must be numeric")
		}
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, amberr.Wrap(amberr.KindValidationError, "SSH port number is invalid", err)
	}
	if n == 0 {
		return 0, amberr.New(amberr.KindValidationError, "SSH port must be between 1 and 65535")
	}
	return uint16(n), nil
}

// ValidateFilePath validates a file path destined for an SSH -i/-F argument.
func ValidateFilePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", amberr.New(amberr.KindValidationError, "file path cannot be empty")
	}
	if containsAny(path, filePathDangerous) {
		return "", amberr.New(amberr.KindValidationError, "file path contains invalid characters")
	}
	if containsSubstitution(path) {
		return "", amberr.New(amberr.KindValidationError, "file path contains command substitution syntax")
	}
	if strings.Contains(path, "//") && !strings.HasPrefix(path, "//") {
		return "", amberr.New(amberr.KindValidationError, "file path contains invalid consecutive slashes")
	}
	return path, nil
}

// ValidateHostname validates a bare hostname, IPv4/IPv6 literal, or
// user@host form used for the SSH transport target.
func ValidateHostname(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", amberr.New(amberr.KindValidationError, "hostname cannot be empty")
	}
	if containsAny(host, hostDangerous) {
		return "", amberr.New(amberr.KindValidationError, "hostname contains invalid characters")
	}
	if containsWhitespace(host) {
		return "", amberr.New(amberr.KindValidationError, "hostname cannot contain whitespace")
	}
	if containsSubstitution(host) {
		return "", amberr.New(amberr.KindValidationError, "hostname contains command substitution syntax")
	}

	parts := strings.Split(host, "@")
	var hostnamePart string
	switch len(parts) {
	case 1:
		hostnamePart = parts[0]
	case 2:
		username := parts[0]
		if username == "" || !isValidUsername(username) {
			return "", amberr.New(amberr.KindValidationError, "invalid username in hostname")
		}
		hostnamePart = parts[1]
	default:
		return "", amberr.New(amberr.KindValidationError, "invalid hostname format")
	}

	if net.ParseIP(hostnamePart) != nil {
		return host, nil
	}
	if err := validateHostnameLabels(hostnamePart); err != nil {
		return "", err
	}
	return host, nil
}

func isValidUsername(s string) bool {
	for _, c := range s {
		if !isAlnum(c) && c != '_' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func validateHostnameLabels(hostnamePart string) error {
	if len(hostnamePart) > 253 {
		return amberr.New(amberr.KindValidationError, "hostname too long (max 253 characters)")
	}
	for _, label := range strings.Split(hostnamePart, ".") {
		if label == "" || len(label) > 63 {
			return amberr.New(amberr.KindValidationError, "invalid hostname label length")
		}
		first := rune(label[0])
		if !isAlnum(first) {
			return amberr.New(amberr.KindValidationError, "hostname label must start with alphanumeric character")
		}
		for _, c := range label {
			if !isAlnum(c) && c != '-' {
				return amberr.New(amberr.KindValidationError, "hostname label contains invalid characters")
			}
		}
		if strings.HasSuffix(label, "-") {
			return amberr.New(amberr.KindValidationError, "hostname label cannot end with hyphen")
		}
	}
	return nil
}

func isAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ValidateProxyJump validates a ProxyJump spec: comma-separated list of
// user@host or user@host:port hops.
func ValidateProxyJump(proxyJump string) (string, error) {
	proxyJump = strings.TrimSpace(proxyJump)
	if proxyJump == "" {
		return "", amberr.New(amberr.KindValidationError, "proxy jump cannot be empty")
	}
	if containsAny(proxyJump, hostDangerous) {
		return "", amberr.New(amberr.KindValidationError, "proxy jump contains invalid characters")
	}

	for _, hop := range strings.Split(proxyJump, ",") {
		hop = strings.TrimSpace(hop)
		if idx := strings.LastIndex(hop, ":"); idx >= 0 {
			hostPart, portPart := hop[:idx], hop[idx+1:]
			if _, err := ValidateHostname(hostPart); err != nil {
				return "", err
			}
			if _, err := ValidateSSHPort(portPart); err != nil {
				return "", err
			}
		} else {
			if _, err := ValidateHostname(hop); err != nil {
				return "", err
			}
		}
	}
	return proxyJump, nil
}

// SanitizeSSHOption validates a generic SSH -o option value, rejecting
// shell metacharacters and the directives that would let an option value
// spawn an arbitrary process (ProxyCommand, LocalCommand).
func SanitizeSSHOption(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", amberr.New(amberr.KindValidationError, "SSH option cannot be empty")
	}
	if containsAny(value, sshOptionDangerous) {
		return "", amberr.New(amberr.KindValidationError, "SSH option contains invalid characters")
	}
	if strings.Contains(value, "$(") || strings.Contains(value, "${") {
		return "", amberr.New(amberr.KindValidationError, "SSH option contains command substitution syntax")
	}
	lowered := strings.ToLower(value)
	for _, banned := range bannedSSHDirectives {
		if strings.Contains(lowered, banned) {
			return "", amberr.New(amberr.KindValidationError, "SSH option contains forbidden directives")
		}
	}
	if strings.ContainsRune(value, '\t') || containsControl(value) {
		return "", amberr.New(amberr.KindValidationError, "SSH option contains invalid whitespace")
	}
	return value, nil
}

func containsAny(s, chars string) bool {
	return strings.ContainsAny(s, chars)
}

func containsWhitespace(s string) bool {
	for _, c := range s {
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f' {
			return true
		}
	}
	return false
}

func containsSubstitution(s string) bool {
	return strings.Contains(s, "$(") || strings.Contains(s, "${") || strings.Contains(s, "`")
}

func containsControl(s string) bool {
	for _, c := range s {
		if c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}

// CustomCommandArgs splits a user-supplied custom rsync/rclone command
// template into argv, substituting {source}, {dest}, and {linkDest}
// placeholders. It rejects arguments that would override the transport
// (-e, --rsh) since those are owned by the TransferDriver, not the user.
func CustomCommandArgs(template, source, dest, linkDest string) ([]string, error) {
	fields, err := shellSplit(template)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindValidationError, "invalid custom command syntax", err)
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "-e") || f == "--rsh" || strings.HasPrefix(f, "--rsh=") {
			return nil, amberr.New(amberr.KindValidationError, "custom command may not override the transport option")
		}
		f = strings.ReplaceAll(f, "{source}", source)
		f = strings.ReplaceAll(f, "{dest}", dest)
		f = strings.ReplaceAll(f, "{linkDest}", linkDest)
		out = append(out, f)
	}
	return out, nil
}

// shellSplit performs POSIX-ish word splitting with single and double
// quote support, the way a shell would tokenize a command line the user
// typed into a "custom command" field. No variable expansion or globbing
// is performed; quoting is only there to let a placeholder carry a space.
func shellSplit(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inSingle, inDouble, haveField := false, false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			} else {
				cur.WriteByte(c)
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			} else {
				cur.WriteByte(c)
			}
		case c == '\'':
			inSingle, haveField = true, true
		case c == '"':
			inDouble, haveField = true, true
		case c == ' ' || c == '\t':
			if haveField {
				fields = append(fields, cur.String())
				cur.Reset()
				haveField = false
			}
		default:
			cur.WriteByte(c)
			haveField = true
		}
	}
	if inSingle || inDouble {
		return nil, fmt.Errorf("unterminated quote in command template")
	}
	if haveField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
