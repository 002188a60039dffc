package sqlinline

const QEnsureTalksTable = `--sql 6a1f0c52-93d4-4c57-8d0e-2f7c1b9e4a31
create table if not exists avatar_talks (
    id            uuid primary key,
    handle        text not null,
    text          text not null,
    voice_id      text not null default '',
    source_url    text not null default '',
    status        text not null,
    result_url    text not null default '',
    error_message text not null default '',
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now()
);
create index if not exists avatar_talks_pending_idx on avatar_talks (created_at) where status = 'pending';
`

const QInsertTalk = `--sql 0c9e3b7a-5d21-4f7e-a1b4-7e2d9c6f8a02
insert into avatar_talks (id, handle, text, voice_id, source_url, status, result_url, error_message, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9);
`

const QSelectTalk = `--sql 3b5d8e1f-2a4c-4e6b-9f0d-1c7a3e5b9d14
select id, handle, text, voice_id, source_url, status, result_url, error_message, created_at, updated_at
from avatar_talks
where id = $1;
`

const QUpdateTalkStatus = `--sql 8e2f4a6c-1b3d-4c5e-8f7a-9d0b2c4e6f35
update avatar_talks
set status = $2,
    result_url = $3,
    error_message = $4,
    updated_at = now()
where id = $1 and status = 'pending';
`

const QSelectPendingTalks = `--sql 5f7a9c1e-3d5b-4f7d-a9c1-e3f5a7b9d246
select id, handle, text, voice_id, source_url, status, result_url, error_message, created_at, updated_at
from avatar_talks
where status = 'pending'
order by created_at asc
limit $1;
`

const QDeleteTalk = `--sql 2d4f6b8a-0c1e-4a3c-b5d7-f9a1c3e5b768
delete from avatar_talks
where id = $1;
`
