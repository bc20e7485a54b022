package registry

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
)

// Unassigned is the facility and group given to newly created accounts.
const Unassigned = "da assegnare"

var ErrDuplicateAccount = errors.New("account already exists")

var directoryHeader = []string{"stabilimento", "gruppo", "account"}

// Account is one {facility, group, account} row of the directory.
type Account struct {
	Facility string `json:"stabilimento"`
	Group    string `json:"gruppo"`
	Name     string `json:"account"`
}

// Header renders the account as the X-PLM-Account header value.
func (a Account) Header() string {
	return a.Facility + "|" + a.Group + "|" + a.Name
}

// HierarchyGroup lists the accounts of one group.
type HierarchyGroup struct {
	Name     string   `json:"nome"`
	Accounts []string `json:"accounts"`
}

// HierarchyNode lists the groups of one facility.
type HierarchyNode struct {
	Facility string           `json:"stabilimento"`
	Groups   []HierarchyGroup `json:"gruppi"`
}

// Directory is the CSV backed account directory. Reads are served from memory;
// Append writes through to the file.
type Directory struct {
	path     string
	mu       sync.RWMutex
	accounts []Account
}

// NewDirectory loads the directory at path. A missing file is an empty directory.
func NewDirectory(path string) (*Directory, error) {
	d := &Directory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}

	return d, nil
}

// NewMemoryDirectory returns a directory that is not backed by a file.
func NewMemoryDirectory(accounts ...Account) *Directory {
	return &Directory{accounts: append([]Account(nil), accounts...)}
}

// Reload re-reads the directory file.
func (d *Directory) Reload() error {
	if d.path == "" {
		return nil
	}

	accounts, err := readAccounts(d.path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.accounts = accounts
	d.mu.Unlock()

	return nil
}

// Find matches account case-insensitively; empty facility or group match any.
func (d *Directory) Find(account, facility, group string) (Account, bool) {
	name := strings.ToLower(strings.TrimSpace(account))
	facility = strings.ToLower(strings.TrimSpace(facility))
	group = strings.ToLower(strings.TrimSpace(group))
	if name == "" {
		return Account{}, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, acc := range d.accounts {
		if strings.ToLower(acc.Name) != name {
			continue
		}
		if facility != "" && strings.ToLower(acc.Facility) != facility {
			continue
		}
		if group != "" && strings.ToLower(acc.Group) != group {
			continue
		}
		return acc, true
	}

	return Account{}, false
}

// Append adds a new account with unassigned facility and group.
func (d *Directory) Append(name string) (Account, error) {
	name = strings.TrimSpace(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, acc := range d.accounts {
		if strings.EqualFold(acc.Name, name) {
			return Account{}, ErrDuplicateAccount
		}
	}

	acc := Account{Facility: Unassigned, Group: Unassigned, Name: name}
	if d.path != "" {
		if err := appendAccount(d.path, acc); err != nil {
			return Account{}, err
		}
	}
	d.accounts = append(d.accounts, acc)

	return acc, nil
}

// Remove drops an account appended by Append and rewrites the file.
func (d *Directory) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	accounts := make([]Account, 0, len(d.accounts))
	for _, acc := range d.accounts {
		if !strings.EqualFold(acc.Name, strings.TrimSpace(name)) {
			accounts = append(accounts, acc)
		}
	}
	if d.path != "" {
		if err := writeAccounts(d.path, accounts); err != nil {
			return err
		}
	}
	d.accounts = accounts

	return nil
}

// Hierarchy groups accounts by facility and group, all levels sorted.
func (d *Directory) Hierarchy() []HierarchyNode {
	d.mu.RLock()
	tree := make(map[string]map[string][]string)
	for _, acc := range d.accounts {
		groups, ok := tree[acc.Facility]
		if !ok {
			groups = make(map[string][]string)
			tree[acc.Facility] = groups
		}
		if !contains(groups[acc.Group], acc.Name) {
			groups[acc.Group] = append(groups[acc.Group], acc.Name)
		}
	}
	d.mu.RUnlock()

	nodes := make([]HierarchyNode, 0, len(tree))
	for facility, groups := range tree {
		node := HierarchyNode{Facility: facility}
		for group, accounts := range groups {
			sort.Strings(accounts)
			node.Groups = append(node.Groups, HierarchyGroup{Name: group, Accounts: accounts})
		}
		sort.Slice(node.Groups, func(i, j int) bool { return node.Groups[i].Name < node.Groups[j].Name })
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Facility < nodes[j].Facility })

	return nodes
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}

func readAccounts(path string) ([]Account, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var accounts []Account
	header := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(record) < 3 {
			continue
		}

		acc := Account{
			Facility: strings.TrimSpace(record[0]),
			Group:    strings.TrimSpace(record[1]),
			Name:     strings.TrimSpace(record[2]),
		}
		if acc.Facility == "" || acc.Group == "" || acc.Name == "" {
			continue
		}
		accounts = append(accounts, acc)
	}

	return accounts, nil
}

func appendAccount(path string, acc Account) error {
	_, statErr := os.Stat(path)
	create := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if create {
		if err := w.Write(directoryHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{acc.Facility, acc.Group, acc.Name}); err != nil {
		return err
	}
	w.Flush()

	return w.Error()
}

func writeAccounts(path string, accounts []Account) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	records := [][]string{directoryHeader}
	for _, acc := range accounts {
		records = append(records, []string{acc.Facility, acc.Group, acc.Name})
	}
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
