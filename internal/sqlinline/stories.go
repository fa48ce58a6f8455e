package sqlinline

const QUpsertStory = `--sql 7f3c9a4e-215d-4c8b-9a6f-8e41b20cd7a3
insert into stories (id, created_at, title, lesson, theme, language, character_ids, pages)
values ($1, $2, $3, $4, $5, $6, $7, $8)
on conflict (id) do update set
  title         = excluded.title,
  lesson        = excluded.lesson,
  theme         = excluded.theme,
  language      = excluded.language,
  character_ids = excluded.character_ids,
  pages         = excluded.pages,
  updated_at    = now();
`

const QGetStoryByID = `--sql 1b8e6c02-9f4a-4d37-b5c1-03a7de9f6412
select id, created_at, title, lesson, theme, language, character_ids, pages
from stories
where id = $1;
`

const QListStories = `--sql c4d17b68-3e2f-49a5-8d90-6b5fa1c8e927
select id, created_at, title, lesson, theme, language, character_ids, pages
from stories
order by created_at desc;
`

const QDeleteStory = `--sql 9a52f0d3-7c81-4b6e-a2d4-f18c3e07b5c6
delete from stories
where id = $1;
`
