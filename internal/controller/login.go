package controller

import (
	"context"
	"log"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/transport"
)

// Login validates credentials with the provider and stores them on the account.
// Providers without authentication accept credentials without a request. When the
// provider supports DRM and the credentials carry unactivated vendor data, the device
// is activated and the activation is stored with the credentials.
func (c *Controller) Login(ctx context.Context, account *accounts.Account, credentials entities.Credentials) error {
	provider := account.Provider()

	if auth := provider.Authentication; auth != nil {
		if !auth.ValidPIN(credentials.PIN) {
			return failure(FailureLocalPrecondition, nil, "PIN does not meet the requirements of %s", provider.DisplayName)
		}
		if auth.LoginURI != "" {
			if _, err := c.fetch(ctx, auth.LoginURI, transport.AuthFromCredentials(credentials)); err != nil {
				return err
			}
		}
	}

	if err := account.SetCredentials(&credentials); err != nil {
		return failure(FailureGeneral, err, "save credentials of %s", describeAccount(account))
	}
	log.Printf("[SYNC] logged in to %s", describeAccount(account))

	adobe := credentials.Adobe
	if c.drm == nil || !provider.SupportsDRM || adobe == nil || adobe.Activated() {
		return nil
	}

	post, err := c.drm.Activate(ctx, provider, *adobe)
	if err != nil {
		return failure(FailureGeneral, err, "DRM activation for %s", describeAccount(account))
	}
	activated := credentials.WithAdobe(adobe.WithPostActivation(post))
	if err := account.SetCredentials(&activated); err != nil {
		return failure(FailureGeneral, err, "save DRM activation of %s", describeAccount(account))
	}
	log.Printf("[SYNC] activated DRM device %s for %s", post.DeviceID, describeAccount(account))
	return nil
}

// Logout clears the account's credentials and forgets every book it held.
func (c *Controller) Logout(account *accounts.Account) error {
	if err := account.SetCredentials(nil); err != nil {
		return failure(FailureGeneral, err, "clear credentials of %s", describeAccount(account))
	}

	ids, err := account.Books().IDs()
	if err != nil {
		return failure(FailureGeneral, err, "list books of %s", describeAccount(account))
	}
	var failed int
	for _, id := range ids {
		if err := account.Books().Delete(id); err != nil {
			log.Printf("[SYNC] logout could not delete %s: %v", id, err)
			failed++
			continue
		}
		c.forget(account, id)
	}
	if failed > 0 {
		return failure(FailureGeneral, nil, "logout left %d books of %s", failed, describeAccount(account))
	}

	log.Printf("[SYNC] logged out of %s, removed %d books", describeAccount(account), len(ids))
	return nil
}
