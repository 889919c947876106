package main

// Account is one set of WeChat Official Account credentials.
type Account struct {
	Name        string
	AppID       string
	AppSecret   string
	Description string
}

// AccountRegistry holds the named accounts for this invocation in
// declaration order. Read-only after construction.
type AccountRegistry struct {
	accounts    []Account
	defaultName string
}

// newAccountRegistry validates the declared default, if any.
func newAccountRegistry(accounts []Account, defaultName string) (*AccountRegistry, error) {
	r := &AccountRegistry{accounts: accounts, defaultName: defaultName}
	if defaultName != "" && r.find(defaultName) == nil {
		return nil, &ConfigError{Message: "default_account " + defaultName + " is not a configured account"}
	}
	return r, nil
}

func (r *AccountRegistry) find(name string) *Account {
	for i := range r.accounts {
		if r.accounts[i].Name == name {
			return &r.accounts[i]
		}
	}
	return nil
}

// Resolve picks the active account: the named one if given, else the
// declared default, else the sole entry when exactly one exists. An
// empty or ambiguous registry fails before any document is processed.
func (r *AccountRegistry) Resolve(name string) (Account, error) {
	if name != "" {
		if a := r.find(name); a != nil {
			return *a, nil
		}
		return Account{}, &AccountNotFoundError{Name: name, Available: r.names()}
	}
	if r.defaultName != "" {
		return *r.find(r.defaultName), nil
	}
	if len(r.accounts) == 1 {
		return r.accounts[0], nil
	}
	return Account{}, &AccountNotFoundError{Available: r.names()}
}

// List returns all accounts in declaration order for introspection.
func (r *AccountRegistry) List() []Account {
	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

func (r *AccountRegistry) names() []string {
	names := make([]string, len(r.accounts))
	for i, a := range r.accounts {
		names[i] = a.Name
	}
	return names
}
