package catalog

// File is the shape of one catalog YAML file. A file may hold grades,
// courses or both.
type File struct {
	Grades  []Grade  `yaml:"grades"`
	Courses []Course `yaml:"courses"`
}

// Grade is a seeded grade. Its id is derived from Order.
type Grade struct {
	Name        string `yaml:"name"`
	Order       int    `yaml:"order"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	CreatorID   string `yaml:"creator_id"`
}

// Course is a seeded course. ID is required so that reseeding is idempotent.
type Course struct {
	ID          string    `yaml:"id"`
	TeacherID   string    `yaml:"teacher_id"`
	TeacherName string    `yaml:"teacher_name"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Category    string    `yaml:"category"`
	GradeID     string    `yaml:"grade_id"`
	Image       string    `yaml:"image"`
	Level       string    `yaml:"level"`
	Status      string    `yaml:"status"`
	Sections    []Section `yaml:"sections"`
}

type Section struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Chapters    []Chapter `yaml:"chapters"`
}

// Chapter is a seeded chapter. ContentFile, when set, names a markdown
// file next to the YAML whose text becomes the chapter content.
type Chapter struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Content     string `yaml:"content"`
	ContentFile string `yaml:"content_file"`
	Video       string `yaml:"video"`
}
