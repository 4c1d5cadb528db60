package storage

const (
	DEFAULT_PAGE_SIZE              = 16384
	DEFAULT_BUFFER_POOL_SIZE_IN_MB = 200
	DEFAULT_BUFFER_POOL_PAGES      = DEFAULT_BUFFER_POOL_SIZE_IN_MB * 1024 * 1024 / DEFAULT_PAGE_SIZE

	DB_DIR     = "navigatorx-graphdb"
	PAGES_DIR  = "pages"
	SHAPES_DIR = "shapes"

	VERTICES_FILE    = "vertices"
	NEIGHBORS_FILE   = "neighbors"
	ARC_DATA_FILE    = "arcdata"
	COORDINATES_FILE = "coordinates"
)
