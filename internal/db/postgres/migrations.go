package postgres

// Migration: одна встроенная SQL-миграция.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// SQL-миграции встроены в код для упрощения деплоя.
var Migrations = []Migration{
	{1, "profiles", migration001Profiles},
	{2, "economy", migration002Economy},
	{3, "rewards", migration003Rewards},
	{4, "social", migration004Social},
	{5, "notifications", migration005Notifications},
	{6, "messaging", migration006Messaging},
	{7, "calls", migration007Calls},
	{8, "scans", migration008Scans},
	{9, "admin", migration009Admin},
}

var migration001Profiles = `
CREATE TABLE IF NOT EXISTS profiles (
    id UUID PRIMARY KEY,
    username VARCHAR(64),
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    green_points BIGINT NOT NULL DEFAULT 0 CHECK (green_points >= 0),
    total_camly_claimed BIGINT NOT NULL DEFAULT 0 CHECK (total_camly_claimed >= 0),
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_check_in DATE,
    wallet_address VARCHAR(128),
    telegram_chat_id BIGINT UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username ON profiles(LOWER(username));
`

var migration002Economy = `
CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    sender_id UUID REFERENCES profiles(id),
    receiver_id UUID REFERENCES profiles(id),
    amount BIGINT NOT NULL CHECK (amount > 0),
    type VARCHAR(32) NOT NULL CHECK (type IN (
        'gift', 'share_bonus', 'nft_mint', 'scan_reward',
        'check_in', 'streak_bonus', 'content_view', 'claim'
    )),
    reference_id UUID,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
    CHECK (sender_id IS NOT NULL OR receiver_id IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender_id);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(receiver_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);

CREATE TABLE IF NOT EXISTS reward_claims (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id),
    points BIGINT NOT NULL CHECK (points > 0),
    coins BIGINT NOT NULL CHECK (coins > 0),
    wallet_address VARCHAR(128) NOT NULL,
    transaction_id UUID NOT NULL REFERENCES transactions(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reward_claims_user ON reward_claims(user_id);
`

var migration003Rewards = `
CREATE TABLE IF NOT EXISTS daily_limits (
    user_id UUID NOT NULL REFERENCES profiles(id),
    day DATE NOT NULL,
    shares_count INTEGER NOT NULL DEFAULT 0,
    likes_count INTEGER NOT NULL DEFAULT 0,
    scans_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, day)
);

CREATE TABLE IF NOT EXISTS content_views (
    user_id UUID NOT NULL REFERENCES profiles(id),
    content_id VARCHAR(128) NOT NULL,
    content_kind VARCHAR(32) NOT NULL,
    points_earned BIGINT NOT NULL,
    viewed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, content_id)
);
`

var migration004Social = `
CREATE TABLE IF NOT EXISTS posts (
    id UUID PRIMARY KEY,
    author_id UUID NOT NULL REFERENCES profiles(id),
    content TEXT NOT NULL,
    image_url TEXT,
    likes_count INTEGER NOT NULL DEFAULT 0,
    shares_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);

CREATE TABLE IF NOT EXISTS post_likes (
    post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES profiles(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS post_shares (
    id UUID PRIMARY KEY,
    post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES profiles(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS nft_mints (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id),
    token_id VARCHAR(128) NOT NULL,
    tx_hash VARCHAR(128) NOT NULL UNIQUE,
    wallet_address VARCHAR(128) NOT NULL,
    points_awarded BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration005Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id),
    type VARCHAR(32) NOT NULL,
    title VARCHAR(255) NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    read_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
`

var migration006Messaging = `
CREATE TABLE IF NOT EXISTS conversations (
    id UUID PRIMARY KEY,
    is_group BOOLEAN NOT NULL DEFAULT FALSE,
    title VARCHAR(255) NOT NULL DEFAULT '',
    created_by UUID NOT NULL REFERENCES profiles(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversation_participants (
    conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES profiles(id),
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_read_at TIMESTAMPTZ,
    PRIMARY KEY (conversation_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);

CREATE TABLE IF NOT EXISTS messages (
    id UUID PRIMARY KEY,
    conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    sender_id UUID NOT NULL REFERENCES profiles(id),
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS message_receipts (
    message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES profiles(id),
    delivered_at TIMESTAMPTZ,
    seen_at TIMESTAMPTZ,
    PRIMARY KEY (message_id, user_id)
);

CREATE TABLE IF NOT EXISTS message_reactions (
    id UUID PRIMARY KEY,
    message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES profiles(id),
    emoji VARCHAR(32) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (message_id, user_id, emoji)
);
`

var migration007Calls = `
CREATE TABLE IF NOT EXISTS calls (
    id UUID PRIMARY KEY,
    caller_id UUID NOT NULL REFERENCES profiles(id),
    callee_id UUID NOT NULL REFERENCES profiles(id),
    media VARCHAR(8) NOT NULL CHECK (media IN ('audio', 'video')),
    status VARCHAR(16) NOT NULL CHECK (status IN (
        'ringing', 'accepted', 'rejected', 'connected', 'ended', 'missed'
    )),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    answered_at TIMESTAMPTZ,
    connected_at TIMESTAMPTZ,
    ended_at TIMESTAMPTZ,
    duration_seconds INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls(caller_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(callee_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_calls_ringing ON calls(created_at) WHERE status = 'ringing';

CREATE TABLE IF NOT EXISTS group_calls (
    id UUID PRIMARY KEY,
    conversation_id UUID NOT NULL REFERENCES conversations(id),
    started_by UUID NOT NULL REFERENCES profiles(id),
    media VARCHAR(8) NOT NULL CHECK (media IN ('audio', 'video')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ended_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS call_recordings (
    id UUID PRIMARY KEY,
    call_id UUID REFERENCES calls(id),
    group_call_id UUID REFERENCES group_calls(id),
    recorded_by UUID NOT NULL REFERENCES profiles(id),
    file_url TEXT NOT NULL,
    public_id TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    file_size_bytes BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK ((call_id IS NULL) <> (group_call_id IS NULL))
);
`

var migration008Scans = `
CREATE TABLE IF NOT EXISTS waste_scans (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id),
    image_url TEXT,
    waste_type VARCHAR(128) NOT NULL,
    material VARCHAR(128) NOT NULL DEFAULT '',
    recyclable BOOLEAN NOT NULL DEFAULT FALSE,
    bin_color VARCHAR(8) NOT NULL CHECK (bin_color IN ('yellow', 'blue', 'black', 'red')),
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    tips TEXT NOT NULL DEFAULT '',
    points_awarded BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_waste_scans_user ON waste_scans(user_id, created_at DESC);
`

var migration009Admin = `
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    client_key VARCHAR(128) NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_key ON admin_login_attempts(client_key, attempt_time DESC);

CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    client_key VARCHAR(128) NOT NULL,
    token_hash CHAR(64) NOT NULL UNIQUE,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
`
