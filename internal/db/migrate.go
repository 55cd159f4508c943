package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    phone_number TEXT NOT NULL,
    birth_date DATE,
    points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
    is_admin BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS missions (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL CHECK (points > 0),
    image_url TEXT,
    active_on DATE NOT NULL DEFAULT CURRENT_DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_missions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    mission_id BIGINT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
    proof TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(user_id, mission_id)
);

CREATE TABLE IF NOT EXISTS vouchers (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    image_path TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL CHECK (points > 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vouchers_exchange (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    voucher_id BIGINT NOT NULL REFERENCES vouchers(id),
    token TEXT UNIQUE NOT NULL,
    points_spent BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rewards (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    phone TEXT NOT NULL,
    balance BIGINT NOT NULL CHECK (balance > 0),
    points_spent BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    revoked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS sessions_user_idx ON sessions(user_id) WHERE revoked_at IS NULL;
CREATE INDEX IF NOT EXISTS user_missions_user_created_idx ON user_missions(user_id, created_at DESC);
`

// alters upgrades databases created by older releases: user_missions.is_completed
// is replaced by status (true -> completed, false -> not_started) and
// users.profile_picture is added. proof_uploaded marks proofs the store owns.
const alters = `
DO $$ BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='user_missions' AND column_name='status'
    ) THEN
        ALTER TABLE user_missions ADD COLUMN status TEXT NOT NULL DEFAULT 'not_started';
    END IF;
    IF EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='user_missions' AND column_name='is_completed'
    ) THEN
        UPDATE user_missions SET status = CASE WHEN is_completed THEN 'completed' ELSE 'not_started' END;
        ALTER TABLE user_missions DROP COLUMN is_completed;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.table_constraints WHERE table_name='user_missions' AND constraint_name='user_missions_status_check'
    ) THEN
        ALTER TABLE user_missions ADD CONSTRAINT user_missions_status_check CHECK (status IN ('not_started', 'pending', 'completed'));
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='user_missions' AND column_name='proof_uploaded'
    ) THEN
        ALTER TABLE user_missions ADD COLUMN proof_uploaded BOOLEAN NOT NULL DEFAULT false;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='users' AND column_name='profile_picture'
    ) THEN
        ALTER TABLE users ADD COLUMN profile_picture TEXT;
    END IF;
END $$;`

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, alters)
	return err
}
