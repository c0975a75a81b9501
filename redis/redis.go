// Package redis persists bridge/settlement state. The core components own
// the authoritative in-memory state under their own locks and write through
// here; on startup the store reloads whatever survived a restart.
package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gamebridge/config"
	"gamebridge/types"

	"github.com/gomodule/redigo/redis"
)

var pool *redis.Pool

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func Init() {
	redisAddr := fmt.Sprintf("%s:%d", config.Config.Server.RedisHost, config.Config.Server.RedisPort)
	pool = &redis.Pool{
		MaxIdle: 5,
		Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", redisAddr, timeoutDialOptions()...) },
	}
}

// Store groups the persistence operations the core components write through.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func bridgeRequestKey(status types.BridgeStatus, id uint64) string {
	return fmt.Sprintf("bridgereq:%s:%d", status, id)
}

func chainStatusIndexKey(chainID uint64, status types.BridgeStatus) string {
	return fmt.Sprintf("bridgereqs:chain:%d:%s", chainID, status)
}

// SaveBridgeRequest inserts a fresh request under its status key and both
// index sets (per-status and per (destinationChain, status)).
func (s *Store) SaveBridgeRequest(req *types.BridgeRequest) error {
	conn := pool.Get()
	defer conn.Close()

	if req == nil {
		return errors.New("null object to store")
	}
	if req.Status == "" {
		return errors.New("bridge request cannot have empty status")
	}

	recordKey := bridgeRequestKey(req.Status, req.ID)

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("cannot marshal bridge request to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SET", recordKey, reqJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SADD", config.RedisStatusSets[string(req.Status)], recordKey); err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SADD", chainStatusIndexKey(req.DestinationChainID, req.Status), req.ID); err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return err
	}

	return nil
}

// ChangeBridgeRequestStatus moves a request from one status key/set to
// another, keeping the (chain, status) secondary index in step.
func (s *Store) ChangeBridgeRequestStatus(req *types.BridgeRequest, prevStatus types.BridgeStatus) error {
	conn := pool.Get()
	defer conn.Close()

	if req == nil {
		return errors.New("null object to store")
	}
	if req.Status == "" {
		return errors.New("bridge request cannot have empty status")
	}

	prevRecordKey := bridgeRequestKey(prevStatus, req.ID)
	recordKey := bridgeRequestKey(req.Status, req.ID)

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("cannot marshal bridge request to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SREM", config.RedisStatusSets[string(prevStatus)], prevRecordKey); err != nil {
		log.Printf("error Redis SREM: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SREM", chainStatusIndexKey(req.DestinationChainID, prevStatus), req.ID); err != nil {
		log.Printf("error Redis SREM: %s", err.Error())
		return err
	}
	if _, err = conn.Do("DEL", prevRecordKey); err != nil {
		log.Printf("error Redis DEL: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SET", recordKey, reqJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SADD", config.RedisStatusSets[string(req.Status)], recordKey); err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SADD", chainStatusIndexKey(req.DestinationChainID, req.Status), req.ID); err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return err
	}

	return nil
}

// LoadBridgeRequests scans every status set and returns all stored requests.
func (s *Store) LoadBridgeRequests() ([]*types.BridgeRequest, error) {
	conn := pool.Get()
	defer conn.Close()

	reqs := make([]*types.BridgeRequest, 0)

	for status := range config.RedisStatusSets {
		var cursor int64
		for {
			values, err := redis.Values(conn.Do("SSCAN", config.RedisStatusSets[status], cursor))
			if err != nil {
				return nil, err
			}

			var keys []string
			_, err = redis.Scan(values, &cursor, &keys)
			if err != nil {
				return nil, err
			}

			for _, key := range keys {
				raw, err := redis.Bytes(conn.Do("GET", key))
				if errors.Is(err, redis.ErrNil) {
					// index set can outlive a record, skip
					continue
				}
				if err != nil {
					log.Printf("error Redis GET: %s", err.Error())
					return nil, err
				}

				var req types.BridgeRequest
				if err = json.Unmarshal(raw, &req); err != nil {
					return nil, err
				}
				reqs = append(reqs, &req)
			}

			if cursor == 0 {
				break
			}
		}
	}

	return reqs, nil
}

func settlementKey(status types.SettlementStatus, id uint64) string {
	return fmt.Sprintf("settlement:%s:%d", status, id)
}

func (s *Store) SaveSettlement(st *types.Settlement) error {
	conn := pool.Get()
	defer conn.Close()

	if st == nil {
		return errors.New("null object to store")
	}
	if st.Status == "" {
		return errors.New("settlement cannot have empty status")
	}

	recordKey := settlementKey(st.Status, st.ID)

	stJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cannot marshal settlement to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SET", recordKey, stJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SADD", config.RedisSettlementSets[string(st.Status)], recordKey); err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return err
	}

	return nil
}

func (s *Store) ChangeSettlementStatus(st *types.Settlement, prevStatus types.SettlementStatus) error {
	conn := pool.Get()
	defer conn.Close()

	if st == nil {
		return errors.New("null object to store")
	}

	prevRecordKey := settlementKey(prevStatus, st.ID)
	recordKey := settlementKey(st.Status, st.ID)

	stJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cannot marshal settlement to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SREM", config.RedisSettlementSets[string(prevStatus)], prevRecordKey); err != nil {
		log.Printf("error Redis SREM: %s", err.Error())
		return err
	}
	if _, err = conn.Do("DEL", prevRecordKey); err != nil {
		log.Printf("error Redis DEL: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SET", recordKey, stJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}
	if _, err = conn.Do("SADD", config.RedisSettlementSets[string(st.Status)], recordKey); err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return err
	}

	return nil
}

func (s *Store) LoadSettlements() ([]*types.Settlement, error) {
	conn := pool.Get()
	defer conn.Close()

	sts := make([]*types.Settlement, 0)

	for status := range config.RedisSettlementSets {
		var cursor int64
		for {
			values, err := redis.Values(conn.Do("SSCAN", config.RedisSettlementSets[status], cursor))
			if err != nil {
				return nil, err
			}

			var keys []string
			_, err = redis.Scan(values, &cursor, &keys)
			if err != nil {
				return nil, err
			}

			for _, key := range keys {
				raw, err := redis.Bytes(conn.Do("GET", key))
				if errors.Is(err, redis.ErrNil) {
					continue
				}
				if err != nil {
					log.Printf("error Redis GET: %s", err.Error())
					return nil, err
				}

				var st types.Settlement
				if err = json.Unmarshal(raw, &st); err != nil {
					return nil, err
				}
				sts = append(sts, &st)
			}

			if cursor == 0 {
				break
			}
		}
	}

	return sts, nil
}

func (s *Store) SaveDispute(d *types.Dispute) error {
	conn := pool.Get()
	defer conn.Close()

	if d == nil {
		return errors.New("null object to store")
	}

	dJSON, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("cannot marshal dispute to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SET", fmt.Sprintf("dispute:%d", d.SettlementID), dJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}

	return nil
}

func (s *Store) SaveRelayer(rel *types.RelayerInfo) error {
	conn := pool.Get()
	defer conn.Close()

	if rel == nil {
		return errors.New("null object to store")
	}

	relJSON, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("cannot marshal relayer to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SET", fmt.Sprintf("relayer:%s", rel.Address.Hex()), relJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}

	return nil
}

// LoadRelayers scans all stored relayer records.
func (s *Store) LoadRelayers() ([]*types.RelayerInfo, error) {
	raws, err := s.scanValues("relayer:*")
	if err != nil {
		return nil, err
	}

	rels := make([]*types.RelayerInfo, 0, len(raws))
	for _, raw := range raws {
		var rel types.RelayerInfo
		if err = json.Unmarshal(raw, &rel); err != nil {
			return nil, err
		}
		rels = append(rels, &rel)
	}
	return rels, nil
}

func (s *Store) SaveChain(cc *types.ChainConfig) error {
	conn := pool.Get()
	defer conn.Close()

	if cc == nil {
		return errors.New("null object to store")
	}

	ccJSON, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("cannot marshal chain config to JSON: %s", err.Error())
	}

	if _, err = conn.Do("SET", fmt.Sprintf("chain:%d", cc.ChainID), ccJSON); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}

	return nil
}

// LoadChains scans all stored chain configurations.
func (s *Store) LoadChains() ([]*types.ChainConfig, error) {
	raws, err := s.scanValues("chain:*")
	if err != nil {
		return nil, err
	}

	ccs := make([]*types.ChainConfig, 0, len(raws))
	for _, raw := range raws {
		var cc types.ChainConfig
		if err = json.Unmarshal(raw, &cc); err != nil {
			return nil, err
		}
		ccs = append(ccs, &cc)
	}
	return ccs, nil
}

// scanValues walks SCAN MATCH pattern and returns the values under every
// matching key.
func (s *Store) scanValues(pattern string) ([][]byte, error) {
	conn := pool.Get()
	defer conn.Close()

	raws := make([][]byte, 0)

	var cursor int64
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", pattern))
		if err != nil {
			return nil, err
		}

		var keys []string
		_, err = redis.Scan(values, &cursor, &keys)
		if err != nil {
			return nil, err
		}

		for _, key := range keys {
			raw, err := redis.Bytes(conn.Do("GET", key))
			if errors.Is(err, redis.ErrNil) {
				continue
			}
			if err != nil {
				log.Printf("error Redis GET: %s", err.Error())
				return nil, err
			}
			raws = append(raws, raw)
		}

		if cursor == 0 {
			break
		}
	}

	return raws, nil
}

// MarkContentHash adds a request content hash to the replay-guard set.
// SADD reports whether the member was actually inserted, which gives the
// atomic insert-if-absent the guard needs.
func (s *Store) MarkContentHash(hash string) (bool, error) {
	conn := pool.Get()
	defer conn.Close()

	added, err := redis.Int(conn.Do("SADD", "processed:contenthash", hash))
	if err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return false, err
	}
	return added == 1, nil
}

// MarkSourceTx adds an L3 source transaction id to the replay-guard set.
func (s *Store) MarkSourceTx(sourceTxID string) (bool, error) {
	conn := pool.Get()
	defer conn.Close()

	added, err := redis.Int(conn.Do("SADD", "processed:sourcetx", sourceTxID))
	if err != nil {
		log.Printf("error Redis SADD: %s", err.Error())
		return false, err
	}
	return added == 1, nil
}

// SetFeePool stores the admin fee pool as a decimal string; arithmetic
// happens in the processor under its own lock.
func (s *Store) SetFeePool(amount string) error {
	conn := pool.Get()
	defer conn.Close()

	if _, err := conn.Do("SET", "feepool", amount); err != nil {
		log.Printf("error Redis SET: %s", err.Error())
		return err
	}
	return nil
}

func (s *Store) GetFeePool() (string, error) {
	conn := pool.Get()
	defer conn.Close()

	amount, err := redis.String(conn.Do("GET", "feepool"))
	if err == nil {
		return amount, nil
	}
	if errors.Is(err, redis.ErrNil) {
		return "0", nil
	}

	log.Printf("error Redis GET: %s", err.Error())
	return "", err
}

// AppendEvent pushes a transition event onto the append-only event list
// (events.Sink implementation).
func (s *Store) AppendEvent(ev *types.TransitionEvent) error {
	conn := pool.Get()
	defer conn.Close()

	evJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("cannot marshal event to JSON: %s", err.Error())
	}

	if _, err = conn.Do("RPUSH", "events:transitions", evJSON); err != nil {
		log.Printf("error Redis RPUSH: %s", err.Error())
		return err
	}

	return nil
}
