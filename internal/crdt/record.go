package crdt

import "reflect"

// record is one document id's slice of the keyed-map CRDT (spec §4.5): a
// FileMetadata's fields, each independently clocked so last-writer-wins
// resolves per field rather than whole-record.
type record struct {
	id DocID

	path      string
	pathClock fieldClock

	title      *string
	titleClock fieldClock

	description      *string
	descriptionClock fieldClock

	partOf      *string
	partOfClock fieldClock

	audience      *[]string
	audienceClock fieldClock

	extra      map[string]any
	extraClock fieldClock

	deleted      bool
	deletedClock fieldClock

	isIndex      bool
	isIndexClock fieldClock

	modifiedAt int64

	contents    *Sequence
	attachments *Sequence
}

func newRecord(id DocID) *record {
	return &record{id: id, contents: newSequence(), attachments: newSequence()}
}

// scalarField identifies one LWW-registered field of a record, for the
// generic apply path apply_update/encode_state_as_update share with local
// mutation.
type scalarField string

const (
	fieldPath        scalarField = "path"
	fieldTitle       scalarField = "title"
	fieldDescription scalarField = "description"
	fieldPartOf      scalarField = "part_of"
	fieldAudience    scalarField = "audience"
	fieldExtra       scalarField = "extra"
	fieldDeleted     scalarField = "deleted"
	fieldIsIndex     scalarField = "is_index"
)

// applyScalar merges one field-level op under last-writer-wins. It reports
// whether the record's observable state changed.
func (r *record) applyScalar(field scalarField, clock fieldClock, value any) bool {
	cur, curClock := r.scalarValue(field)
	if !curClock.isZero() && !clock.wins(curClock) {
		return false
	}
	changed := curClock.isZero() || !reflect.DeepEqual(cur, value)
	r.setScalar(field, clock, value)
	return changed
}

func (r *record) scalarValue(field scalarField) (any, fieldClock) {
	switch field {
	case fieldPath:
		return r.path, r.pathClock
	case fieldTitle:
		return r.title, r.titleClock
	case fieldDescription:
		return r.description, r.descriptionClock
	case fieldPartOf:
		return r.partOf, r.partOfClock
	case fieldAudience:
		return r.audience, r.audienceClock
	case fieldExtra:
		return r.extra, r.extraClock
	case fieldDeleted:
		return r.deleted, r.deletedClock
	case fieldIsIndex:
		return r.isIndex, r.isIndexClock
	default:
		return nil, fieldClock{}
	}
}

func (r *record) setScalar(field scalarField, clock fieldClock, value any) {
	switch field {
	case fieldPath:
		r.path, r.pathClock = value.(string), clock
	case fieldTitle:
		r.title, r.titleClock = value.(*string), clock
	case fieldDescription:
		r.description, r.descriptionClock = value.(*string), clock
	case fieldPartOf:
		r.partOf, r.partOfClock = value.(*string), clock
	case fieldAudience:
		r.audience, r.audienceClock = value.(*[]string), clock
	case fieldExtra:
		r.extra, r.extraClock = value.(map[string]any), clock
	case fieldDeleted:
		r.deleted, r.deletedClock = value.(bool), clock
	case fieldIsIndex:
		r.isIndex, r.isIndexClock = value.(bool), clock
	}
}

// toFileMetadata projects the record into the public FileMetadata shape.
func (r *record) toFileMetadata() FileMetadata {
	m := FileMetadata{
		Title: r.title, Description: r.description, PartOf: r.partOf,
		Audience: r.audience, Deleted: r.deleted, Extra: r.extra, ModifiedAt: r.modifiedAt,
	}
	if r.isIndex {
		contents := make([]string, 0)
		for _, v := range r.contents.Live() {
			contents = append(contents, v.(string))
		}
		m.Contents = &contents
	}
	for _, v := range r.attachments.Live() {
		m.Attachments = append(m.Attachments, v.(BinaryRef))
	}
	return m
}
