package pgxstore

// Schema is the DDL for every table the store touches. EnsureSchema runs it
// on startup; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    email         TEXT NOT NULL,
    verified      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS tokens (
    value      TEXT PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
    application TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS tokens_account_idx ON tokens (account_id);

CREATE TABLE IF NOT EXISTS reset_requests (
    account_id         BIGINT PRIMARY KEY REFERENCES accounts (id) ON DELETE CASCADE,
    temporary_password TEXT NOT NULL,
    expiry             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS otp_secrets (
    account_id BIGINT PRIMARY KEY REFERENCES accounts (id) ON DELETE CASCADE,
    secret     TEXT NOT NULL,
    enabled    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS backup_codes (
    id         BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
    code       TEXT NOT NULL,
    used       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS backup_codes_account_idx ON backup_codes (account_id);

CREATE TABLE IF NOT EXISTS security_keys (
    id          BIGSERIAL PRIMARY KEY,
    account_id  BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
    application TEXT NOT NULL,
    name        TEXT NOT NULL,
    data        BYTEA NOT NULL
);

CREATE INDEX IF NOT EXISTS security_keys_account_idx ON security_keys (account_id);

CREATE TABLE IF NOT EXISTS verification_codes (
    account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
    code       TEXT NOT NULL,
    expiry     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS verification_codes_account_idx ON verification_codes (account_id);
`
