package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/apperr"
	"github.com/oddsline/wager-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary columns are NUMERIC for exact decimal precision; outcome lists,
// allowlists, and metadata are JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const marketColumns = `id, app_id, question, outcomes, outcome_type, status,
	total_pool::TEXT, fee_rate::TEXT, winning_outcome_id,
	allowed_bettors, min_bet::TEXT, max_bet::TEXT, metadata,
	created_at, closes_at, resolved_at`

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	allowed, metadata, err := marshalMarketExtras(m)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO markets (id, app_id, question, outcomes, outcome_type, status,
		                      total_pool, fee_rate, winning_outcome_id,
		                      allowed_bettors, min_bet, max_bet, metadata,
		                      created_at, closes_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9,
		         $10, $11::NUMERIC, $12::NUMERIC, $13, $14, $15, $16)`,
		m.ID, m.AppID, m.Question, outcomes, m.OutcomeType, m.Status,
		m.TotalPool.String(), m.FeeRate.String(), m.WinningOutcomeID,
		allowed, m.MinBet.String(), m.MaxBet.String(), metadata,
		m.CreatedAt, m.ClosesAt, m.ResolvedAt,
	)
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)

	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeMarketNotFound, "market %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	allowed, metadata, err := marshalMarketExtras(m)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET question = $2, outcomes = $3, outcome_type = $4, status = $5,
		     total_pool = $6::NUMERIC, fee_rate = $7::NUMERIC,
		     winning_outcome_id = $8, allowed_bettors = $9,
		     min_bet = $10::NUMERIC, max_bet = $11::NUMERIC, metadata = $12,
		     closes_at = $13, resolved_at = $14
		 WHERE id = $1`,
		m.ID, m.Question, outcomes, m.OutcomeType, m.Status,
		m.TotalPool.String(), m.FeeRate.String(),
		m.WinningOutcomeID, allowed,
		m.MinBet.String(), m.MaxBet.String(), metadata,
		m.ClosesAt, m.ResolvedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeMarketNotFound, "market %s not found", m.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteMarket(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM markets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeMarketNotFound, "market %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SaveBet(ctx context.Context, b *model.Bet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bets (id, market_id, bettor_id, outcome_id, amount,
		                   potential_payout, status, payout, odds_at_placement, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8::NUMERIC, $9::NUMERIC, $10)
		 ON CONFLICT (id) DO UPDATE
		 SET status = EXCLUDED.status, payout = EXCLUDED.payout`,
		b.ID, b.MarketID, b.BettorID, b.OutcomeID, b.Amount.String(),
		b.PotentialPayout.String(), b.Status, b.Payout.String(),
		b.OddsAtPlacement.String(), b.CreatedAt,
	)
	return err
}

const betColumns = `id, market_id, bettor_id, outcome_id, amount::TEXT,
	potential_payout::TEXT, status, payout::TEXT, odds_at_placement::TEXT, created_at`

func (s *PostgresStore) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)

	b, err := scanBet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeBetNotFound, "bet %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bet %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) ListBetsByMarket(ctx context.Context, marketID string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE market_id = $1 ORDER BY created_at, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) ListBetsByUser(ctx context.Context, bettorID string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE bettor_id = $1 ORDER BY created_at, id`, bettorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) DeleteBet(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeBetNotFound, "bet %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, balance, total_wagered, total_won, total_lost, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET balance = EXCLUDED.balance,
		     total_wagered = EXCLUDED.total_wagered,
		     total_won = EXCLUDED.total_won,
		     total_lost = EXCLUDED.total_lost`,
		u.ID, u.Balance.String(), u.TotalWagered.String(),
		u.TotalWon.String(), u.TotalLost.String(), u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var balance, wagered, won, lost string

	err := s.pool.QueryRow(ctx,
		`SELECT id, balance::TEXT, total_wagered::TEXT, total_won::TEXT, total_lost::TEXT, created_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &balance, &wagered, &won, &lost, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeUserNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Balance, _ = decimal.NewFromString(balance)
	u.TotalWagered, _ = decimal.NewFromString(wagered)
	u.TotalWon, _ = decimal.NewFromString(won)
	u.TotalLost, _ = decimal.NewFromString(lost)
	return &u, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeUserNotFound, "user %s not found", id)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE markets, bets, users`)
	return err
}

func (s *PostgresStore) Stats(ctx context.Context) (model.StoreStats, error) {
	var st model.StoreStats
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM markets),
		        (SELECT COUNT(*) FROM bets),
		        (SELECT COUNT(*) FROM users)`).
		Scan(&st.Markets, &st.Bets, &st.Users)
	return st, err
}

func (s *PostgresStore) Export(ctx context.Context) (*model.Snapshot, error) {
	markets, err := s.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT `+betColumns+` FROM bets ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bets, err := scanBets(rows)
	if err != nil {
		return nil, err
	}

	userRows, err := s.pool.Query(ctx,
		`SELECT id, balance::TEXT, total_wagered::TEXT, total_won::TEXT, total_lost::TEXT, created_at
		 FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer userRows.Close()

	var users []model.User
	for userRows.Next() {
		var u model.User
		var balance, wagered, won, lost string
		if err := userRows.Scan(&u.ID, &balance, &wagered, &won, &lost, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Balance, _ = decimal.NewFromString(balance)
		u.TotalWagered, _ = decimal.NewFromString(wagered)
		u.TotalWon, _ = decimal.NewFromString(won)
		u.TotalLost, _ = decimal.NewFromString(lost)
		users = append(users, u)
	}
	if err := userRows.Err(); err != nil {
		return nil, err
	}

	return &model.Snapshot{
		Markets:    markets,
		Bets:       bets,
		Users:      users,
		ExportedAt: time.Now().UTC(),
	}, nil
}

func (s *PostgresStore) Import(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE markets, bets, users`); err != nil {
		return err
	}

	for i := range snap.Markets {
		m := &snap.Markets[i]
		outcomes, err := json.Marshal(m.Outcomes)
		if err != nil {
			return fmt.Errorf("marshal outcomes: %w", err)
		}
		allowed, metadata, err := marshalMarketExtras(m)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO markets (id, app_id, question, outcomes, outcome_type, status,
			                      total_pool, fee_rate, winning_outcome_id,
			                      allowed_bettors, min_bet, max_bet, metadata,
			                      created_at, closes_at, resolved_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9,
			         $10, $11::NUMERIC, $12::NUMERIC, $13, $14, $15, $16)`,
			m.ID, m.AppID, m.Question, outcomes, m.OutcomeType, m.Status,
			m.TotalPool.String(), m.FeeRate.String(), m.WinningOutcomeID,
			allowed, m.MinBet.String(), m.MaxBet.String(), metadata,
			m.CreatedAt, m.ClosesAt, m.ResolvedAt,
		); err != nil {
			return err
		}
	}

	for i := range snap.Bets {
		b := &snap.Bets[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO bets (id, market_id, bettor_id, outcome_id, amount,
			                   potential_payout, status, payout, odds_at_placement, created_at)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8::NUMERIC, $9::NUMERIC, $10)`,
			b.ID, b.MarketID, b.BettorID, b.OutcomeID, b.Amount.String(),
			b.PotentialPayout.String(), b.Status, b.Payout.String(),
			b.OddsAtPlacement.String(), b.CreatedAt,
		); err != nil {
			return err
		}
	}

	for i := range snap.Users {
		u := &snap.Users[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO users (id, balance, total_wagered, total_won, total_lost, created_at)
			 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6)`,
			u.ID, u.Balance.String(), u.TotalWagered.String(),
			u.TotalWon.String(), u.TotalLost.String(), u.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// --- scan helpers ---

type pgxRow interface {
	Scan(dest ...any) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var outcomes, allowed, metadata []byte
	var totalPool, feeRate, minBet, maxBet string

	if err := row.Scan(&m.ID, &m.AppID, &m.Question, &outcomes, &m.OutcomeType, &m.Status,
		&totalPool, &feeRate, &m.WinningOutcomeID,
		&allowed, &minBet, &maxBet, &metadata,
		&m.CreatedAt, &m.ClosesAt, &m.ResolvedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(outcomes, &m.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	if len(allowed) > 0 {
		if err := json.Unmarshal(allowed, &m.AllowedBettors); err != nil {
			return nil, fmt.Errorf("unmarshal allowed_bettors: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	m.TotalPool, _ = decimal.NewFromString(totalPool)
	m.FeeRate, _ = decimal.NewFromString(feeRate)
	m.MinBet, _ = decimal.NewFromString(minBet)
	m.MaxBet, _ = decimal.NewFromString(maxBet)
	return &m, nil
}

func scanBet(row pgxRow) (*model.Bet, error) {
	var b model.Bet
	var amount, potential, payout, odds string

	if err := row.Scan(&b.ID, &b.MarketID, &b.BettorID, &b.OutcomeID, &amount,
		&potential, &b.Status, &payout, &odds, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Amount, _ = decimal.NewFromString(amount)
	b.PotentialPayout, _ = decimal.NewFromString(potential)
	b.Payout, _ = decimal.NewFromString(payout)
	b.OddsAtPlacement, _ = decimal.NewFromString(odds)
	return &b, nil
}

func scanBets(rows pgx.Rows) ([]model.Bet, error) {
	var bets []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

// marshalMarketExtras encodes the nullable JSONB columns. Nil slices/maps
// map to SQL NULL so the scan side can distinguish unset from empty.
func marshalMarketExtras(m *model.Market) (allowed, metadata []byte, err error) {
	if m.AllowedBettors != nil {
		allowed, err = json.Marshal(m.AllowedBettors)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal allowed_bettors: %w", err)
		}
	}
	if m.Metadata != nil {
		metadata, err = json.Marshal(m.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	return allowed, metadata, nil
}
