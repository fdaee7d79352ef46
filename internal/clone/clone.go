// Package clone is the bulk export/import replication boundary
// (component J): the single JSON document described in spec §6.1, and
// the outbound HTTP client used both to fetch that document on import
// and for change/submit's best-effort remote relay.
package clone

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/types"
)

// remoteTimeout bounds every outbound call clone/submit makes (§5).
const remoteTimeout = 30 * time.Second

// refEntry is one (ObjectInfo, digest) pair in the wire document.
type refEntry struct {
	Info   types.ObjectInfo `json:"info"`
	Digest string           `json:"digest"`
}

// Document is the wire shape exchanged by clone export/import.
type Document struct {
	Refs        []refEntry        `json:"refs"`
	Objects     map[string]string `json:"objects"`
	Changes     []*types.Change   `json:"changes"`
	ChangeOrder []string          `json:"change_order"`
	Source      string            `json:"source,omitempty"`
}

// Store glues the clone operations to the refs/objects/index partitions.
type Store struct {
	refs   *refs.Store
	objs   *objects.Store
	idx    *index.Store
	client *http.Client
}

// New wires a clone.Store over its backing partitions.
func New(refsStore *refs.Store, objsStore *objects.Store, idxStore *index.Store) *Store {
	return &Store{
		refs:   refsStore,
		objs:   objsStore,
		idx:    idxStore,
		client: &http.Client{Timeout: remoteTimeout},
	}
}

// Export assembles the full export document: every ref, every blob,
// and the Merged changes in merged_order.
func (s *Store) Export() (*Document, error) {
	allRefs, err := s.refs.GetAllRefs()
	if err != nil {
		return nil, err
	}
	doc := &Document{Objects: map[string]string{}}
	for info, digest := range allRefs {
		doc.Refs = append(doc.Refs, refEntry{Info: info, Digest: digest})
	}

	if err := s.objs.ForEach(func(digest, content string) error {
		doc.Objects[digest] = content
		return nil
	}); err != nil {
		return nil, err
	}

	order, err := s.idx.GetChangeOrder()
	if err != nil {
		return nil, err
	}
	doc.ChangeOrder = order
	for _, id := range order {
		c, ok, err := s.idx.GetChange(id)
		if err != nil {
			return nil, err
		}
		if ok {
			doc.Changes = append(doc.Changes, c)
		}
	}

	source, err := s.idx.GetSource()
	if err != nil {
		return nil, err
	}
	doc.Source = source

	return doc, nil
}

// Import loads doc into refs/objects/index, in the fixed order
// objects -> refs -> changes -> order -> source (§6.1). It does not
// clear the partitions first; Reset does that.
func (s *Store) Import(doc *Document) error {
	for digest, content := range doc.Objects {
		if err := s.objs.Restore(digest, content); err != nil {
			return err
		}
	}
	for _, re := range doc.Refs {
		if err := s.refs.UpdateRef(re.Info.Type, re.Info.Name, re.Info.Version, re.Digest); err != nil {
			return err
		}
	}
	for _, c := range doc.Changes {
		if err := s.idx.StoreChange(c); err != nil {
			return err
		}
	}
	if err := s.idx.SetChangeOrder(doc.ChangeOrder); err != nil {
		return err
	}
	if doc.Source != "" {
		if err := s.idx.SetSource(doc.Source); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the refs, objects, and index partitions ahead of an
// import, per §6.1's "clears refs/objects/index" step.
func (s *Store) Reset() error {
	if err := s.objs.Clear(); err != nil {
		return err
	}
	if err := s.refs.Clear(); err != nil {
		return err
	}
	return s.idx.Clear()
}

// Fetch retrieves and decodes a Document from a peer URL, surfacing
// any failure as REMOTE_ERROR (§7).
func (s *Store) Fetch(ctx context.Context, url string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, opserr.Wrap(opserr.RemoteError, err, "build clone request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, opserr.Wrap(opserr.RemoteError, err, "fetch clone document from %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, opserr.New(opserr.RemoteError, "clone source %s returned status %d", url, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, opserr.Wrap(opserr.RemoteError, err, "decode clone document from %s", url)
	}
	return &doc, nil
}

// PendingUpdates compares the current version of every local ref
// against a peer's export document and reports the refs that differ
// or are locally absent, for system/status's
// pending_updates field. Errors reaching the peer are the caller's to
// log and swallow, matching submit's relay policy (§7).
func (s *Store) PendingUpdates(ctx context.Context, url string) ([]types.ObjectInfo, error) {
	doc, err := s.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	local, err := s.refs.GetAllRefs()
	if err != nil {
		return nil, err
	}
	var pending []types.ObjectInfo
	for _, re := range doc.Refs {
		if d, ok := local[re.Info]; !ok || d != re.Digest {
			pending = append(pending, re.Info)
		}
	}
	return pending, nil
}

// Relay best-effort POSTs a Change to a peer's submit endpoint. Per
// §7's propagation policy, callers log and swallow its error rather
// than failing the local submit.
func (s *Store) Relay(ctx context.Context, url string, c *types.Change) error {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	body, err := json.Marshal(c)
	if err != nil {
		return opserr.Wrap(opserr.RemoteError, err, "encode change %s for relay", c.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return opserr.Wrap(opserr.RemoteError, err, "build relay request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return opserr.Wrap(opserr.RemoteError, err, "relay change %s to %s", c.ID, url)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return opserr.New(opserr.RemoteError, "relay to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
