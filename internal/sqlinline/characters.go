package sqlinline

const QUpsertCharacter = `--sql e6a94f21-0b3d-47c8-92e5-d74b1a08cf53
insert into characters (id, created_at, name, image)
values ($1, $2, $3, $4)
on conflict (id) do update set
  name  = excluded.name,
  image = excluded.image;
`

const QListCharacters = `--sql 38d5c7f0-6a12-4e9b-b84d-201fe6a3d9b7
select id, created_at, name, image
from characters
order by created_at asc;
`

const QDeleteCharacter = `--sql f01b3da8-54c6-4972-8e3b-6c9a07d2e185
delete from characters
where id = $1;
`
