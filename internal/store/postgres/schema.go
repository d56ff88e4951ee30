package postgres

// schema is applied by Migrate. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS members (
    id           BIGSERIAL PRIMARY KEY,
    name         TEXT NOT NULL,
    email        TEXT NOT NULL,
    phone_number TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_pools (
    id            BIGSERIAL PRIMARY KEY,
    name          TEXT    NOT NULL,
    max_stock     INTEGER NOT NULL CHECK (max_stock >= 0),
    current_stock INTEGER NOT NULL,
    CONSTRAINT inventory_pools_stock_range CHECK (current_stock BETWEEN 0 AND max_stock)
);

CREATE TABLE IF NOT EXISTS tickets (
    id             BIGSERIAL PRIMARY KEY,
    pool_id        BIGINT         NOT NULL REFERENCES inventory_pools (id),
    seat_info      TEXT           NOT NULL,
    price_amount   NUMERIC(19, 4) NOT NULL CHECK (price_amount >= 0),
    price_currency CHAR(3)        NOT NULL,
    status         TEXT           NOT NULL CHECK (status IN ('AVAILABLE', 'SOLD'))
);

CREATE INDEX IF NOT EXISTS idx_tickets_pool_id ON tickets (pool_id);

CREATE TABLE IF NOT EXISTS orders (
    id             BIGSERIAL PRIMARY KEY,
    member_id      BIGINT         NOT NULL REFERENCES members (id),
    status         TEXT           NOT NULL CHECK (status IN ('ACTIVE', 'CANCELED')),
    total_amount   NUMERIC(19, 4) NOT NULL,
    total_currency CHAR(3)        NOT NULL,
    ordered_at     TIMESTAMPTZ    NOT NULL
);

CREATE TABLE IF NOT EXISTS order_lines (
    id                BIGSERIAL PRIMARY KEY,
    order_id          BIGINT         NOT NULL REFERENCES orders (id),
    ticket_id         BIGINT         NOT NULL REFERENCES tickets (id),
    purchase_amount   NUMERIC(19, 4) NOT NULL,
    purchase_currency CHAR(3)        NOT NULL,
    created_at        TIMESTAMPTZ    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines (order_id, id);
CREATE INDEX IF NOT EXISTS idx_order_lines_ticket_created ON order_lines (ticket_id, created_at);
`
