package model

type indexerImplementation struct {
	days  int
	slots int
}

func (indexer *indexerImplementation) Index(entity int, day Day, slot int) int {
	return slot + indexer.slots*int(day) + indexer.slots*indexer.days*entity
}

func (indexer *indexerImplementation) Size(entities int) int {
	return entities * indexer.days * indexer.slots
}
