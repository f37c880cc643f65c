package controller

import (
	"log"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/profiles"
)

// ActivateProfile makes the registry hold exactly the books of p's accounts. Books of
// the previously active profile are removed first, so subscribers see removals before
// the new profile's books arrive. Registry writes of in-flight operations finish before
// activation starts, and later ones see the new current profile. It returns the number
// of books registered.
func (c *Controller) ActivateProfile(p *profiles.Profile) (int, error) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()

	for _, rec := range c.registry.Books() {
		c.registry.Remove(rec.Book.ID)
	}

	loaded := 0
	for _, account := range p.Accounts().Accounts() {
		n, err := c.loadAccountLocked(account)
		if err != nil {
			return loaded, err
		}
		loaded += n
	}
	log.Printf("[SYNC] activated profile %d (%s) with %d books", p.ID(), p.DisplayName(), loaded)
	return loaded, nil
}

// active reports whether account belongs to the current profile.
func (c *Controller) active(account *accounts.Account) bool {
	if c.profiles == nil {
		return true
	}
	p, err := c.profiles.Current()
	if err != nil {
		return false
	}
	a, err := p.Accounts().AccountByID(account.ID())
	return err == nil && a == account
}
