// Package registry tracks registered economic nodes (mining pools,
// exchanges, custodians) and their per-proposal vote signals.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"governance-engine/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrUnknownNode rejects signals from unregistered node ids.
	ErrUnknownNode = errors.New("unknown economic node")

	// ErrNodeSuspended rejects signals from suspended nodes.
	ErrNodeSuspended = errors.New("economic node suspended")

	// ErrInvalidClass rejects registrations outside mining/economic.
	ErrInvalidClass = errors.New("invalid node class")

	// ErrInvalidSignal rejects unknown signal types.
	ErrInvalidSignal = errors.New("invalid signal type")
)

// Registry caches the node table behind a TTL so signal ingestion does not
// hit the database for every class lookup. Nodes change rarely.
type Registry struct {
	db        *gorm.DB
	mu        sync.RWMutex
	cache     map[string]models.EconomicNode // node_id -> node
	lastFetch time.Time
	ttl       time.Duration
}

func New(db *gorm.DB) *Registry {
	return &Registry{
		db:    db,
		cache: map[string]models.EconomicNode{},
		ttl:   30 * time.Minute,
	}
}

// Register adds a node or reactivates an existing one. The class is fixed
// at first registration and never re-inferred at tally time.
func (r *Registry) Register(nodeID, class string, now time.Time) error {
	if class != models.NodeClassMining && class != models.NodeClassEconomic {
		return fmt.Errorf("class %q: %w", class, ErrInvalidClass)
	}
	if nodeID == "" {
		return fmt.Errorf("empty node id: %w", ErrUnknownNode)
	}

	var node models.EconomicNode
	err := r.db.Where("node_id = ?", nodeID).First(&node).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		node = models.EconomicNode{
			NodeID:       nodeID,
			Class:        class,
			Status:       models.NodeStatusActive,
			RegisteredAt: now,
		}
		err = r.db.Create(&node).Error
	case err == nil:
		node.Status = models.NodeStatusActive
		err = r.db.Save(&node).Error
	}
	if err != nil {
		return fmt.Errorf("register node %s: %w", nodeID, err)
	}

	r.invalidate()
	return nil
}

// Suspend takes a node out of signal ingestion without deleting its history.
func (r *Registry) Suspend(nodeID string) error {
	res := r.db.Model(&models.EconomicNode{}).
		Where("node_id = ?", nodeID).
		Update("status", models.NodeStatusSuspended)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("node %s: %w", nodeID, ErrUnknownNode)
	}
	r.invalidate()
	return nil
}

// RecordSignal upserts a node's signal on a proposal. One active signal per
// node per proposal; a later signed_at replaces the prior one, an earlier
// one is ignored (last-write-wins by timestamp).
func (r *Registry) RecordSignal(proposalID, nodeID, signalType string, weightAtSignal float64, signedAt time.Time) error {
	switch signalType {
	case models.VoteSupport, models.VoteVeto, models.VoteAbstain:
	default:
		return fmt.Errorf("signal %q: %w", signalType, ErrInvalidSignal)
	}
	node, err := r.lookup(nodeID)
	if err != nil {
		return err
	}
	if node.Status != models.NodeStatusActive {
		return fmt.Errorf("node %s: %w", nodeID, ErrNodeSuspended)
	}
	if weightAtSignal < 0 {
		return fmt.Errorf("negative weight: %w", ErrInvalidSignal)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.EconomicNodeVote
		err := tx.Where("proposal_id = ? AND node_id = ?", proposalID, nodeID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.EconomicNodeVote{
				ProposalID:         proposalID,
				NodeID:             nodeID,
				NodeClass:          node.Class,
				SignalType:         signalType,
				WeightAtSignalTime: weightAtSignal,
				SignedAt:           signedAt,
			}).Error
		case err != nil:
			return err
		}
		if existing.SignedAt.After(signedAt) {
			// Stale signal, keep the newer one
			return nil
		}
		existing.SignalType = signalType
		existing.WeightAtSignalTime = weightAtSignal
		existing.SignedAt = signedAt
		return tx.Save(&existing).Error
	})
}

// lookup resolves a node from the cache, refreshing when stale.
func (r *Registry) lookup(nodeID string) (models.EconomicNode, error) {
	r.mu.RLock()
	node, ok := r.cache[nodeID]
	stale := time.Since(r.lastFetch) > r.ttl
	r.mu.RUnlock()
	if ok && !stale {
		return node, nil
	}

	if err := r.refresh(); err != nil {
		return models.EconomicNode{}, err
	}

	r.mu.RLock()
	node, ok = r.cache[nodeID]
	r.mu.RUnlock()
	if !ok {
		return models.EconomicNode{}, fmt.Errorf("node %s: %w", nodeID, ErrUnknownNode)
	}
	return node, nil
}

func (r *Registry) refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check under lock
	if time.Since(r.lastFetch) <= r.ttl && len(r.cache) > 0 {
		return nil
	}

	var nodes []models.EconomicNode
	if err := r.db.Find(&nodes).Error; err != nil {
		return err
	}
	cache := make(map[string]models.EconomicNode, len(nodes))
	for _, n := range nodes {
		cache[n.NodeID] = n
	}
	r.cache = cache
	r.lastFetch = time.Now()
	return nil
}

func (r *Registry) invalidate() {
	r.mu.Lock()
	r.lastFetch = time.Time{}
	r.mu.Unlock()
}
