package vault

import (
	"context"
	"sort"

	"github.com/wgbowley/PassEM/internal/audit"
	"github.com/wgbowley/PassEM/internal/document"
)

// LoadAll decrypts every record independently. Records that fail are left
// out of Records and listed in Failed; only store errors fail the call.
func (m *Manager) LoadAll(ctx context.Context, passphrase string) (*LoadResult, error) {
	doc, err := m.store.Read(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	res := &LoadResult{Records: make(map[string]document.Record, len(doc.Accounts))}
	for id, enc := range doc.Accounts {
		rec, err := m.cipher.Decrypt(enc, passphrase)
		if err != nil {
			m.log.Debug().Str("id", id).Err(err).Msg("record did not decrypt")
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Records[id] = rec
	}
	sort.Strings(res.Failed)
	if len(res.Failed) > 0 {
		m.log.Warn().Int("failed", len(res.Failed)).Int("loaded", len(res.Records)).Msg("partial vault load")
	}
	return res, nil
}

func (m *Manager) GetRecord(ctx context.Context, passphrase, id string) (document.Record, error) {
	doc, err := m.store.Read(ctx)
	if err != nil {
		return document.Record{}, storeErr(err)
	}
	enc, ok := doc.Accounts[id]
	if !ok {
		return document.Record{}, ErrNotFound
	}
	return m.cipher.Decrypt(enc, passphrase)
}

func (m *Manager) AddRecord(ctx context.Context, passphrase string, rec document.Record) (string, error) {
	enc, err := m.cipher.Encrypt(rec, passphrase)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Read(ctx)
	if err != nil {
		return "", storeErr(err)
	}
	if doc.Accounts == nil {
		doc.Accounts = map[string]document.EncryptedRecord{}
	}
	id, err := uniqueID(m.rand, m.idLength, doc.Accounts)
	if err != nil {
		return "", err
	}
	doc.Accounts[id] = enc
	if err := m.store.Write(ctx, doc); err != nil {
		return "", err
	}
	m.log.Info().Str("id", id).Msg("record added")
	m.record(audit.ActionAdd, id)
	return id, nil
}

// EditRecord replaces the record under id with a fresh encryption of rec.
func (m *Manager) EditRecord(ctx context.Context, passphrase, id string, rec document.Record) error {
	enc, err := m.cipher.Encrypt(rec, passphrase)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Read(ctx)
	if err != nil {
		return storeErr(err)
	}
	if _, ok := doc.Accounts[id]; !ok {
		return ErrNotFound
	}
	doc.Accounts[id] = enc
	if err := m.store.Write(ctx, doc); err != nil {
		return err
	}
	m.log.Info().Str("id", id).Msg("record edited")
	m.record(audit.ActionEdit, id)
	return nil
}

// DeleteRecord removes id. Deleting an absent id is a no-op and does not
// rewrite the document.
func (m *Manager) DeleteRecord(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Read(ctx)
	if err != nil {
		return storeErr(err)
	}
	if _, ok := doc.Accounts[id]; !ok {
		return nil
	}
	delete(doc.Accounts, id)
	if err := m.store.Write(ctx, doc); err != nil {
		return err
	}
	m.log.Info().Str("id", id).Msg("record deleted")
	m.record(audit.ActionDelete, id)
	return nil
}
