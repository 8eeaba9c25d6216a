package gateway

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
)

// memberLine matches one "username, password" directory line. Both
// halves are stored obscured; the gateway compares the obscured forms
// from the wire directly against them.
var memberLine = regexp.MustCompile(`([^,]{5,50}),\s(.{5,50})`)

// MemberDirectory is the read-only username to password mapping loaded
// once at gateway startup.
type MemberDirectory struct {
	members map[string]string
}

// LoadMemberDirectory reads a line-oriented member file. Lines that do
// not match the expected shape are skipped; the last entry for a
// duplicate username wins.
func LoadMemberDirectory(path string) (*MemberDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open member file %s: %w", path, err)
	}
	defer f.Close()

	members := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := memberLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		members[m[1]] = m[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read member file %s: %w", path, err)
	}

	return &MemberDirectory{members: members}, nil
}

// NewMemberDirectory builds a directory from an in-memory map, used by
// tests and embedded deployments.
func NewMemberDirectory(members map[string]string) *MemberDirectory {
	copied := make(map[string]string, len(members))
	for u, p := range members {
		copied[u] = p
	}
	return &MemberDirectory{members: copied}
}

// Lookup returns the stored password for a username.
func (d *MemberDirectory) Lookup(username string) (string, bool) {
	password, ok := d.members[username]
	return password, ok
}

// Len returns the number of directory entries.
func (d *MemberDirectory) Len() int {
	return len(d.members)
}
