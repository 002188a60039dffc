package sqlinline

const QEnsureIntegrationTokensTable = `--sql 4c6e8a0b-2d4f-4b6d-8e0a-3c5e7a9b1d52
create table if not exists integration_tokens (
    id         uuid primary key default gen_random_uuid(),
    provider   text not null unique,
    token      text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QSelectIntegrationToken = `--sql 9b1d3f5a-7c9e-4b1d-a3f5-7c9e1b3d5f60
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 1e3a5c7e-9b1d-4e3a-b5c7-e9b1d3f5a781
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
