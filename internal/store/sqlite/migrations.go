package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          TEXT PRIMARY KEY,
    email       TEXT NOT NULL UNIQUE,
    provider    TEXT NOT NULL DEFAULT 'gmail',
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
    account_id     TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
    access_token   TEXT NOT NULL,
    refresh_token  TEXT NOT NULL DEFAULT '',
    expires_at     DATETIME,
    email_address  TEXT NOT NULL DEFAULT '',
    last_synced_at DATETIME,
    updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    provider_id TEXT NOT NULL,
    thread_id   TEXT NOT NULL DEFAULT '',
    from_email  TEXT NOT NULL,
    from_name   TEXT NOT NULL DEFAULT '',
    to_email    TEXT NOT NULL,
    subject     TEXT NOT NULL,
    body_text   TEXT NOT NULL DEFAULT '',
    body_html   TEXT NOT NULL DEFAULT '',
    snippet     TEXT NOT NULL DEFAULT '',
    labels      TEXT NOT NULL DEFAULT '[]',
    priority    INTEGER NOT NULL DEFAULT 3 CHECK (priority BETWEEN 1 AND 5),
    category    TEXT NOT NULL,
    is_read     BOOLEAN NOT NULL DEFAULT FALSE,
    is_starred  BOOLEAN NOT NULL DEFAULT FALSE,
    received_at DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL,
    PRIMARY KEY (account_id, provider_id)
);

CREATE TABLE IF NOT EXISTS api_tokens (
    token_hash  TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_received ON messages(account_id, received_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_category ON messages(account_id, category);
CREATE INDEX IF NOT EXISTS idx_api_tokens_account ON api_tokens(account_id);
`
